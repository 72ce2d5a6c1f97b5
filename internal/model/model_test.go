package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCycleState_RecordCountsEveryOutcome(t *testing.T) {
	cycle := CycleState{Cycle: 1}

	cycle.Record(StepResult{StepID: "a", Outcome: OutcomeApplied})
	cycle.Record(StepResult{StepID: "b", Outcome: OutcomeAlreadySatisfied})
	cycle.Record(StepResult{StepID: "c", Outcome: OutcomeSkipped})
	cycle.Record(StepResult{StepID: "d", Outcome: OutcomeFailed})

	require.Equal(t, 1, cycle.Applied)
	require.Equal(t, 1, cycle.AlreadySatisfied)
	require.Equal(t, 1, cycle.Skipped)
	require.Equal(t, 1, cycle.Failed)
	require.Len(t, cycle.Results, 4)
	require.Equal(t, 4, cycle.Total())
}

func TestCycleState_Converged(t *testing.T) {
	tests := []struct {
		name  string
		cycle CycleState
		want  bool
	}{
		{
			name:  "all satisfied no reboot",
			cycle: CycleState{AlreadySatisfied: 3},
			want:  true,
		},
		{
			name:  "all satisfied reboot pending",
			cycle: CycleState{AlreadySatisfied: 3, RebootRequired: true},
			want:  false,
		},
		{
			name:  "work applied",
			cycle: CycleState{Applied: 1, AlreadySatisfied: 2},
			want:  false,
		},
		{
			name:  "failure present",
			cycle: CycleState{AlreadySatisfied: 2, Failed: 1},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.cycle.Converged())
		})
	}
}

func TestRunState_Totals(t *testing.T) {
	run := RunState{
		Cycles: []CycleState{
			{Cycle: 1, Applied: 3, Failed: 1},
			{Cycle: 2, Applied: 1, AlreadySatisfied: 2, Skipped: 1},
		},
	}

	applied, satisfied, skipped, failed := run.Totals()
	require.Equal(t, 4, applied)
	require.Equal(t, 2, satisfied)
	require.Equal(t, 1, skipped)
	require.Equal(t, 1, failed)
}

func TestRunState_LastCycle(t *testing.T) {
	require.Zero(t, RunState{}.LastCycle().Cycle)

	run := RunState{Cycles: []CycleState{{Cycle: 1}, {Cycle: 2}}}
	require.Equal(t, 2, run.LastCycle().Cycle)
}

func TestStepResult_IsFailure(t *testing.T) {
	require.True(t, StepResult{Outcome: OutcomeFailed}.IsFailure())
	require.False(t, StepResult{Outcome: OutcomeApplied}.IsFailure())
}
