package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	convergeerrors "converge/pkg/errors"
)

func writePlan(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestParsePlan_Valid(t *testing.T) {
	path := writePlan(t, `
version: "1.0"
name: base-image
settings:
  max_cycles: 3
  auto_reboot: true
  lock_resource: dpkg
  lock_timeout: 120
  poll_interval: 2
  categories: [Critical, Important]
steps:
  - id: os_updates
    type: package
    packages: [curl, ca-certificates]
    manager: apt
    update: true
  - id: cleanup
    type: command
    run: apt-get autoremove -y
    check: test -z "$(apt-get -s autoremove | grep '^Remv')"
`)

	plan, err := ParsePlan(path)
	require.NoError(t, err)
	require.Equal(t, "base-image", plan.Name)
	require.Equal(t, 3, plan.Settings.MaxCycles)
	require.True(t, plan.Settings.AutoReboot)
	require.Equal(t, []string{"Critical", "Important"}, plan.Settings.Categories)
	require.Len(t, plan.Steps, 2)

	require.NotNil(t, plan.Steps[0].Package)
	require.Equal(t, []string{"curl", "ca-certificates"}, plan.Steps[0].Package.Packages)
	require.NotNil(t, plan.Steps[1].Command)
	require.Contains(t, plan.Steps[1].Command.Check, "autoremove")
}

func TestParsePlan_MissingFile(t *testing.T) {
	_, err := ParsePlan(filepath.Join(t.TempDir(), "absent.yaml"))

	var parseErr *convergeerrors.ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestParsePlan_MalformedYAML(t *testing.T) {
	path := writePlan(t, "version: [unclosed")

	_, err := ParsePlan(path)
	var parseErr *convergeerrors.ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestParsePlan_DuplicateStepID(t *testing.T) {
	path := writePlan(t, `
version: "1.0"
name: dupes
steps:
  - id: fix
    type: command
    run: "true"
  - id: fix
    type: command
    run: "true"
`)

	_, err := ParsePlan(path)
	var valErr *convergeerrors.ValidationError
	require.True(t, errors.As(err, &valErr))
	require.Equal(t, "steps[1].id", valErr.Field)
}

func TestParsePlan_RejectsUnknownStepType(t *testing.T) {
	path := writePlan(t, `
version: "1.0"
name: bad-type
steps:
  - id: nope
    type: registry
    run: "true"
`)

	_, err := ParsePlan(path)
	var valErr *convergeerrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestParsePlan_CommandRequiresRun(t *testing.T) {
	path := writePlan(t, `
version: "1.0"
name: no-run
steps:
  - id: hollow
    type: command
    check: "true"
`)

	_, err := ParsePlan(path)
	var valErr *convergeerrors.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestSettings_Defaults(t *testing.T) {
	var s Settings
	require.Equal(t, DefaultMaxCycles, s.MaxCyclesOrDefault())
	require.Equal(t, DefaultLockTimeout, s.LockTimeoutOrDefault())
	require.Equal(t, DefaultPollInterval, s.PollIntervalOrDefault())

	s = Settings{MaxCycles: 2, LockTimeout: 60, PollInterval: 1}
	require.Equal(t, 2, s.MaxCyclesOrDefault())
	require.Equal(t, 60*time.Second, s.LockTimeoutOrDefault())
	require.Equal(t, time.Second, s.PollIntervalOrDefault())
}

func TestStepMap(t *testing.T) {
	steps := []Step{{ID: "a"}, {ID: "b"}}
	m := StepMap(steps)
	require.Len(t, m, 2)
	require.Equal(t, "a", m["a"].ID)
}
