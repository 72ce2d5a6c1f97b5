package command

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"converge/internal/config"
	"converge/internal/step"
)

func requirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func buildStep(t *testing.T, cfg config.CommandStep, env step.Env) step.Step {
	t.Helper()
	s, err := Build(config.Step{ID: "under_test", Type: "command", Command: &cfg}, env)
	require.NoError(t, err)
	return s
}

func TestBuild_RequiresCommandConfig(t *testing.T) {
	_, err := Build(config.Step{ID: "x", Type: "command"}, step.Env{})
	require.Error(t, err)
}

func TestProbe_NoCheckMeansUnsatisfied(t *testing.T) {
	s := buildStep(t, config.CommandStep{Run: "true"}, step.Env{})

	satisfied, err := s.Probe(context.Background())
	require.NoError(t, err)
	require.False(t, satisfied)
}

func TestProbe_CheckExitCodes(t *testing.T) {
	requirePOSIX(t)

	s := buildStep(t, config.CommandStep{Run: "true", Check: "true"}, step.Env{})
	satisfied, err := s.Probe(context.Background())
	require.NoError(t, err)
	require.True(t, satisfied)

	s = buildStep(t, config.CommandStep{Run: "true", Check: "false"}, step.Env{})
	satisfied, err = s.Probe(context.Background())
	require.NoError(t, err)
	require.False(t, satisfied)
}

func TestApply_RunsCommand(t *testing.T) {
	requirePOSIX(t)

	mark := filepath.Join(t.TempDir(), "done")
	s := buildStep(t, config.CommandStep{Run: "touch " + mark}, step.Env{})

	require.NoError(t, s.Apply(context.Background()))
	_, err := os.Stat(mark)
	require.NoError(t, err)
}

func TestApply_FailureIncludesOutput(t *testing.T) {
	requirePOSIX(t)

	s := buildStep(t, config.CommandStep{Run: "echo install blew up >&2; exit 3"}, step.Env{})

	err := s.Apply(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "install blew up")
}

func TestApply_EnvAndWorkDir(t *testing.T) {
	requirePOSIX(t)

	dir := t.TempDir()
	s := buildStep(t, config.CommandStep{
		Run:     `printf '%s' "$GREETING" > out.txt`,
		WorkDir: dir,
		Env:     map[string]string{"GREETING": "hello"},
	}, step.Env{})

	require.NoError(t, s.Apply(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestBuild_CategoriesForwardedThroughEnv(t *testing.T) {
	requirePOSIX(t)

	dir := t.TempDir()
	s := buildStep(t, config.CommandStep{
		Run:     `printf '%s' "$CONVERGE_CATEGORIES" > cats.txt`,
		WorkDir: dir,
	}, step.Env{Categories: []string{"Critical", "Important"}})

	require.NoError(t, s.Apply(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "cats.txt"))
	require.NoError(t, err)
	require.Equal(t, "Critical,Important", string(data))
}

func TestCritical_Propagated(t *testing.T) {
	s, err := Build(config.Step{
		ID:       "vital",
		Type:     "command",
		Critical: true,
		Command:  &config.CommandStep{Run: "true"},
	}, step.Env{})
	require.NoError(t, err)
	require.True(t, step.IsCritical(s))
}

func TestRegister(t *testing.T) {
	reg := step.NewRegistry()
	require.NoError(t, Register(reg))
	require.Contains(t, reg.Types(), "command")
}
