// Package pkg implements the package step kind: a batch of system
// packages installed through one package manager. The probe queries the
// manager's database; apply installs the whole batch in one invocation,
// the way the image build scripts do.
package pkg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"converge/internal/config"
	"converge/internal/step"
	convergeerrors "converge/pkg/errors"
)

// Runner executes a package manager command and returns its combined
// output. Injected in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// Run executes the command and returns combined output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// manager describes one package manager's command surface.
type manager struct {
	queryArgv   func(pkg string) []string
	installArgv func(pkgs []string) []string
	refreshArgv []string
}

var managers = map[string]manager{
	"apt": {
		queryArgv: func(pkg string) []string {
			return []string{"dpkg-query", "-W", "-f", "${Status}", pkg}
		},
		installArgv: func(pkgs []string) []string {
			return append([]string{"apt-get", "install", "-y"}, pkgs...)
		},
		refreshArgv: []string{"apt-get", "update"},
	},
	"dnf": {
		queryArgv: func(pkg string) []string {
			return []string{"rpm", "-q", pkg}
		},
		installArgv: func(pkgs []string) []string {
			return append([]string{"dnf", "install", "-y"}, pkgs...)
		},
		refreshArgv: []string{"dnf", "makecache"},
	},
	"zypper": {
		queryArgv: func(pkg string) []string {
			return []string{"rpm", "-q", pkg}
		},
		installArgv: func(pkgs []string) []string {
			return append([]string{"zypper", "--non-interactive", "install"}, pkgs...)
		},
		refreshArgv: []string{"zypper", "refresh"},
	},
	"choco": {
		queryArgv: func(pkg string) []string {
			return []string{"choco", "list", "--exact", "--limit-output", pkg}
		},
		installArgv: func(pkgs []string) []string {
			return append([]string{"choco", "install", "-y"}, pkgs...)
		},
	},
}

// Step installs a batch of packages through one manager.
type Step struct {
	id       string
	mgrName  string
	mgr      manager
	packages []string
	refresh  bool
	critical bool
	runner   Runner
}

var (
	_ step.Step         = (*Step)(nil)
	_ step.CriticalStep = (*Step)(nil)
)

// Register wires the package builder into a registry.
func Register(reg *step.Registry) error {
	return reg.Register("package", Build)
}

// Build constructs a package step from plan configuration.
func Build(cfg config.Step, env step.Env) (step.Step, error) {
	if cfg.Package == nil || len(cfg.Package.Packages) == 0 {
		return nil, convergeerrors.NewValidationError(cfg.ID, "package configuration missing", nil)
	}

	name := cfg.Package.Manager
	if name == "" {
		name = "apt"
	}
	mgr, ok := managers[name]
	if !ok {
		return nil, convergeerrors.NewValidationError(cfg.ID, fmt.Sprintf("unsupported package manager %q", name), nil)
	}

	return &Step{
		id:       cfg.ID,
		mgrName:  name,
		mgr:      mgr,
		packages: cfg.Package.Packages,
		refresh:  cfg.Package.Update,
		critical: cfg.Critical,
		runner:   ExecRunner{},
	}, nil
}

// ID returns the step identifier.
func (s *Step) ID() string { return s.id }

// Critical reports whether a failure of this step aborts the run.
func (s *Step) Critical() bool { return s.critical }

// Probe reports satisfied only when every package in the batch is
// already installed. Query failures are treated as "not installed",
// never as probe errors: an unknown package is exactly the work this
// step exists to do.
func (s *Step) Probe(ctx context.Context) (bool, error) {
	for _, pkg := range s.packages {
		argv := s.mgr.queryArgv(pkg)
		out, err := s.runner.Run(ctx, argv[0], argv[1:]...)
		if err != nil {
			return false, nil
		}
		if s.mgrName == "apt" && !strings.Contains(out, "install ok installed") {
			return false, nil
		}
	}
	return true, nil
}

// Apply refreshes the package index when requested and installs the full
// batch in a single manager invocation.
func (s *Step) Apply(ctx context.Context) error {
	if s.refresh && len(s.mgr.refreshArgv) > 0 {
		argv := s.mgr.refreshArgv
		if out, err := s.runner.Run(ctx, argv[0], argv[1:]...); err != nil {
			return fmt.Errorf("refresh package index: %w: %s", err, strings.TrimSpace(out))
		}
	}

	argv := s.mgr.installArgv(s.packages)
	if out, err := s.runner.Run(ctx, argv[0], argv[1:]...); err != nil {
		return fmt.Errorf("install packages: %w: %s", err, strings.TrimSpace(out))
	}
	return nil
}
