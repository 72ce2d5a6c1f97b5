// Package command implements the shell-command step kind: an optional
// check command probes whether the step is already satisfied, and the run
// command applies it.
package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"converge/internal/config"
	"converge/internal/step"
	convergeerrors "converge/pkg/errors"
)

// Step runs shell commands with environment and working directory control.
type Step struct {
	id       string
	run      string
	check    string
	shell    string
	workDir  string
	env      map[string]string
	critical bool
}

var (
	_ step.Step         = (*Step)(nil)
	_ step.CriticalStep = (*Step)(nil)
)

// Register wires the command builder into a registry.
func Register(reg *step.Registry) error {
	return reg.Register("command", Build)
}

// Build constructs a command step from plan configuration. Plan-level
// categories are forwarded through the CONVERGE_CATEGORIES environment
// variable, uninterpreted.
func Build(cfg config.Step, env step.Env) (step.Step, error) {
	if cfg.Command == nil {
		return nil, convergeerrors.NewValidationError(cfg.ID, "command configuration missing", nil)
	}

	stepEnv := make(map[string]string, len(cfg.Command.Env)+1)
	for k, v := range cfg.Command.Env {
		stepEnv[k] = v
	}
	if len(env.Categories) > 0 {
		stepEnv["CONVERGE_CATEGORIES"] = strings.Join(env.Categories, ",")
	}

	return &Step{
		id:       cfg.ID,
		run:      cfg.Command.Run,
		check:    cfg.Command.Check,
		shell:    cfg.Command.Shell,
		workDir:  cfg.Command.WorkDir,
		env:      stepEnv,
		critical: cfg.Critical,
	}, nil
}

// ID returns the step identifier.
func (s *Step) ID() string { return s.id }

// Critical reports whether a failure of this step aborts the run.
func (s *Step) Critical() bool { return s.critical }

// Probe runs the check command. Exit zero means satisfied; a non-zero
// exit means work remains. Steps without a check command always report
// unsatisfied, so their run command executes every cycle.
func (s *Step) Probe(ctx context.Context) (bool, error) {
	if strings.TrimSpace(s.check) == "" {
		return false, nil
	}

	cmd, err := s.command(ctx, s.check)
	if err != nil {
		return false, err
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		if len(output) > 0 {
			return false, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
		}
		return false, err
	}

	return true, nil
}

// Apply runs the step's command.
func (s *Step) Apply(ctx context.Context) error {
	cmd, err := s.command(ctx, s.run)
	if err != nil {
		return err
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
		}
		return err
	}
	return nil
}

func (s *Step) command(ctx context.Context, script string) (*exec.Cmd, error) {
	shell, shellArgs, err := determineShell(s.shell)
	if err != nil {
		return nil, err
	}

	args := append(shellArgs, script)
	cmd := exec.CommandContext(ctx, shell, args...)
	cmd.Env = buildEnv(s.env)
	if s.workDir != "" {
		cmd.Dir = s.workDir
	}
	return cmd, nil
}

func determineShell(configured string) (string, []string, error) {
	if configured != "" {
		return configured, []string{"-c"}, nil
	}
	if runtime.GOOS == "windows" {
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command"}, nil
	}
	return "/bin/sh", []string{"-c"}, nil
}

func buildEnv(overrides map[string]string) []string {
	env := os.Environ()
	if len(overrides) == 0 {
		return env
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
