package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"converge/internal/model"
)

func TestRender_Converged(t *testing.T) {
	run := model.RunState{
		CyclesUsed:  2,
		MaxCycles:   5,
		Converged:   true,
		Termination: model.TerminationConverged,
		Cycles: []model.CycleState{
			{Cycle: 1, Applied: 3},
			{Cycle: 2, AlreadySatisfied: 3},
		},
	}

	out := Render("base-image", run)
	require.Contains(t, out, "base-image")
	require.Contains(t, out, "converged")
	require.Contains(t, out, "2/5")
	require.Contains(t, out, "applied 3")
	require.Contains(t, out, "cycle 1")
	require.Contains(t, out, "cycle 2")
}

func TestRender_ListsFailures(t *testing.T) {
	run := model.RunState{
		CyclesUsed:  1,
		MaxCycles:   1,
		Termination: model.TerminationBudgetExhausted,
		Cycles: []model.CycleState{
			{
				Cycle:  1,
				Failed: 1,
				Results: []model.StepResult{
					{StepID: "dist_upgrade", Outcome: model.OutcomeFailed, Message: "exit status 100"},
				},
			},
		},
	}

	out := Render("", run)
	require.Contains(t, out, "budget exhausted")
	require.Contains(t, out, "dist_upgrade")
	require.Contains(t, out, "exit status 100")
}

func TestRender_RebootPending(t *testing.T) {
	run := model.RunState{
		CyclesUsed:    1,
		MaxCycles:     5,
		RebootPending: true,
		Termination:   model.TerminationRebootPending,
		Cycles:        []model.CycleState{{Cycle: 1, Applied: 1, RebootRequired: true}},
	}

	out := Render("win-image", run)
	require.Contains(t, out, "reboot required")
}

func TestRender_FatalError(t *testing.T) {
	run := model.RunState{
		CyclesUsed:  1,
		MaxCycles:   5,
		Termination: model.TerminationFatalError,
		Err:         errors.New("lock timeout: dpkg still held after 5m0s"),
	}

	out := Render("", run)
	require.Contains(t, out, "fatal error")
	require.Contains(t, out, "dpkg")
}
