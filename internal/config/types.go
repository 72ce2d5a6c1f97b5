package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Plan represents a full convergence plan document.
type Plan struct {
	Version     string   `yaml:"version" validate:"required,semver"`
	Name        string   `yaml:"name" validate:"required,min=1,max=100"`
	Description string   `yaml:"description,omitempty"`
	Settings    Settings `yaml:"settings,omitempty"`
	Steps       []Step   `yaml:"steps" validate:"required,min=1,dive"`
}

// Settings holds the run parameters the controller consumes.
type Settings struct {
	MaxCycles     int      `yaml:"max_cycles,omitempty" validate:"omitempty,min=1,max=100"`
	AutoReboot    bool     `yaml:"auto_reboot,omitempty"`
	LockResource  string   `yaml:"lock_resource,omitempty"`
	LockFiles     []string `yaml:"lock_files,omitempty"`
	LockTimeout   int      `yaml:"lock_timeout,omitempty" validate:"omitempty,min=1,max=86400"`
	PollInterval  int      `yaml:"poll_interval,omitempty" validate:"omitempty,min=1,max=3600"`
	RebootMarkers []string `yaml:"reboot_markers,omitempty"`
	Categories    []string `yaml:"categories,omitempty"`
	StateDB       string   `yaml:"state_db,omitempty"`
	MetricsListen string   `yaml:"metrics_listen,omitempty"`
	Verbose       bool     `yaml:"verbose,omitempty"`
}

// Defaults mirror the source scripts: five reboot cycles, a 300 second
// ceiling on the package-manager lock wait, probes every 5 seconds.
const (
	DefaultMaxCycles    = 5
	DefaultLockTimeout  = 300 * time.Second
	DefaultPollInterval = 5 * time.Second
)

// MaxCyclesOrDefault returns the configured cycle budget or the default.
func (s Settings) MaxCyclesOrDefault() int {
	if s.MaxCycles > 0 {
		return s.MaxCycles
	}
	return DefaultMaxCycles
}

// LockTimeoutOrDefault returns the configured lock wait ceiling or the default.
func (s Settings) LockTimeoutOrDefault() time.Duration {
	if s.LockTimeout > 0 {
		return time.Duration(s.LockTimeout) * time.Second
	}
	return DefaultLockTimeout
}

// PollIntervalOrDefault returns the configured lock poll interval or the default.
func (s Settings) PollIntervalOrDefault() time.Duration {
	if s.PollInterval > 0 {
		return time.Duration(s.PollInterval) * time.Second
	}
	return DefaultPollInterval
}

// Step describes an individual unit of work in the plan.
type Step struct {
	ID       string `yaml:"id" validate:"required,step_id"`
	Name     string `yaml:"name,omitempty"`
	Type     string `yaml:"type" validate:"required,oneof=command package"`
	Critical bool   `yaml:"critical,omitempty"`

	Command *CommandStep `yaml:",inline,omitempty"`
	Package *PackageStep `yaml:",inline,omitempty"`
}

// UnmarshalYAML customises step decoding to populate type-specific
// structures without conflicts.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	type baseStep struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Type     string `yaml:"type"`
		Critical bool   `yaml:"critical"`
	}

	var base baseStep
	if err := value.Decode(&base); err != nil {
		return err
	}

	s.ID = base.ID
	s.Name = base.Name
	s.Type = base.Type
	s.Critical = base.Critical

	s.Command = nil
	s.Package = nil

	switch base.Type {
	case "command":
		var cmd CommandStep
		if err := value.Decode(&cmd); err != nil {
			return err
		}
		s.Command = &cmd
	case "package":
		var pkg PackageStep
		if err := value.Decode(&pkg); err != nil {
			return err
		}
		s.Package = &pkg
	}

	return nil
}

// CommandStep runs an arbitrary shell command with an optional check
// command that probes whether the step is already satisfied.
type CommandStep struct {
	Run     string            `yaml:"run" validate:"required,min=1"`
	Check   string            `yaml:"check,omitempty"`
	Shell   string            `yaml:"shell,omitempty"`
	WorkDir string            `yaml:"workdir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// PackageStep installs one or more system packages through a package
// manager.
type PackageStep struct {
	Packages []string `yaml:"packages" validate:"required,min=1,dive,min=1,max=100"`
	Manager  string   `yaml:"manager,omitempty" validate:"omitempty,oneof=apt dnf zypper choco"`
	Update   bool     `yaml:"update,omitempty"`
}

// StepMap builds a lookup table for steps by ID.
func StepMap(steps []Step) map[string]Step {
	out := make(map[string]Step, len(steps))
	for _, step := range steps {
		out[step.ID] = step
	}
	return out
}
