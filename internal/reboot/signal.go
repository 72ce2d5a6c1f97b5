// Package reboot answers "is a restart required before further changes
// take effect". Sources are OS specific and pluggable: a marker file
// dropped by package hooks on Debian-family systems, or a probe command
// querying the platform's pending-reboot state. Signals must be cheap and
// side-effect-free; the controller consults them once per cycle, after
// all steps have run.
package reboot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Signal reports whether a reboot is required to make further progress.
type Signal interface {
	IsRebootRequired(ctx context.Context) (bool, error)
}

// MarkerFile signals a pending reboot when the file at Path exists,
// e.g. /var/run/reboot-required.
type MarkerFile struct {
	Path string
}

var _ Signal = MarkerFile{}

// IsRebootRequired reports whether the marker file exists.
func (m MarkerFile) IsRebootRequired(ctx context.Context) (bool, error) {
	if _, err := os.Stat(m.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat reboot marker %s: %w", m.Path, err)
	}
	return true, nil
}

// CommandProbe signals a pending reboot when the probe command exits
// zero. This covers platforms whose pending-reboot state lives behind a
// query tool rather than a marker file.
type CommandProbe struct {
	Shell string
	Check string
}

var _ Signal = CommandProbe{}

// IsRebootRequired runs the probe command and maps exit zero to true.
func (c CommandProbe) IsRebootRequired(ctx context.Context) (bool, error) {
	shell := c.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	if strings.TrimSpace(c.Check) == "" {
		return false, nil
	}

	cmd := exec.CommandContext(ctx, shell, "-c", c.Check)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, fmt.Errorf("reboot probe: %w", err)
	}
	return true, nil
}

// Any combines signals with OR semantics: one pending source is enough.
// This mirrors platforms that scatter pending-reboot state over several
// locations.
type Any []Signal

var _ Signal = Any{}

// IsRebootRequired returns true as soon as any source reports pending.
func (a Any) IsRebootRequired(ctx context.Context) (bool, error) {
	for _, s := range a {
		required, err := s.IsRebootRequired(ctx)
		if err != nil {
			return false, err
		}
		if required {
			return true, nil
		}
	}
	return false, nil
}

// Static always answers with a fixed value. Useful in tests and for
// images that never reboot mid-build.
type Static bool

var _ Signal = Static(false)

// IsRebootRequired returns the fixed answer.
func (s Static) IsRebootRequired(ctx context.Context) (bool, error) {
	return bool(s), nil
}

// FromMarkers builds an OR-composite of marker file signals.
func FromMarkers(paths []string) Signal {
	signals := make(Any, 0, len(paths))
	for _, p := range paths {
		signals = append(signals, MarkerFile{Path: p})
	}
	if len(signals) == 0 {
		return Static(false)
	}
	return signals
}
