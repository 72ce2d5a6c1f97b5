package step

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"converge/internal/config"
)

func TestFunc_Defaults(t *testing.T) {
	s := Func{Name: "noop"}

	satisfied, err := s.Probe(context.Background())
	require.NoError(t, err)
	require.False(t, satisfied)

	require.NoError(t, s.Apply(context.Background()))
	require.Equal(t, "noop", s.ID())
}

func TestIsCritical(t *testing.T) {
	require.False(t, IsCritical(Func{Name: "soft"}))
	require.True(t, IsCritical(Func{Name: "hard", Fatal: true}))
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("command", func(cfg config.Step, env Env) (Step, error) {
		return Func{Name: cfg.ID}, nil
	}))

	built, err := reg.Build(config.Step{ID: "fix_locale", Type: "command"}, Env{})
	require.NoError(t, err)
	require.Equal(t, "fix_locale", built.ID())
}

func TestRegistry_DuplicateTypeRejected(t *testing.T) {
	reg := NewRegistry()
	builder := func(cfg config.Step, env Env) (Step, error) { return Func{Name: cfg.ID}, nil }

	require.NoError(t, reg.Register("command", builder))
	require.Error(t, reg.Register("command", builder))
}

func TestRegistry_UnknownType(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Build(config.Step{ID: "x", Type: "mystery"}, Env{})
	require.Error(t, err)
}

func TestRegistry_BuildAllPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("command", func(cfg config.Step, env Env) (Step, error) {
		return Func{Name: cfg.ID}, nil
	}))

	cfgs := []config.Step{
		{ID: "first", Type: "command"},
		{ID: "second", Type: "command"},
		{ID: "third", Type: "command"},
	}

	steps, err := reg.BuildAll(cfgs, Env{})
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, s := range steps {
		require.Equal(t, cfgs[i].ID, s.ID())
	}
}

func TestRegistry_BuildAllStopsOnError(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("command", func(cfg config.Step, env Env) (Step, error) {
		if cfg.ID == "bad" {
			return nil, fmt.Errorf("broken config")
		}
		return Func{Name: cfg.ID}, nil
	}))

	_, err := reg.BuildAll([]config.Step{{ID: "ok", Type: "command"}, {ID: "bad", Type: "command"}}, Env{})
	require.Error(t, err)
}

func TestRegistry_Types(t *testing.T) {
	reg := NewRegistry()
	builder := func(cfg config.Step, env Env) (Step, error) { return Func{Name: cfg.ID}, nil }
	require.NoError(t, reg.Register("package", builder))
	require.NoError(t, reg.Register("command", builder))

	require.Equal(t, []string{"command", "package"}, reg.Types())
}
