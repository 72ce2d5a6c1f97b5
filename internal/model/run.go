package model

// TerminationReason states why a run ended.
type TerminationReason string

const (
	// TerminationConverged means a cycle completed with nothing left to do.
	TerminationConverged TerminationReason = "converged"
	// TerminationBudgetExhausted means maxCycles elapsed without convergence.
	TerminationBudgetExhausted TerminationReason = "budget_exhausted"
	// TerminationFatalError means the run aborted: lock timeout or a
	// critical step failure.
	TerminationFatalError TerminationReason = "fatal_error"
	// TerminationRebootPending means a reboot is required and the caller
	// must restart the machine and re-invoke before further cycles can run.
	TerminationRebootPending TerminationReason = "reboot_pending"
)

// RunState spans all cycles of one controller invocation.
type RunState struct {
	CyclesUsed    int
	MaxCycles     int
	Converged     bool
	Termination   TerminationReason
	RebootPending bool
	Cycles        []CycleState
	Err           error
}

// Totals sums step outcomes over all recorded cycles.
func (r RunState) Totals() (applied, alreadySatisfied, skipped, failed int) {
	for _, c := range r.Cycles {
		applied += c.Applied
		alreadySatisfied += c.AlreadySatisfied
		skipped += c.Skipped
		failed += c.Failed
	}
	return applied, alreadySatisfied, skipped, failed
}

// LastCycle returns the most recent cycle, or a zero CycleState when no
// cycle has run.
func (r RunState) LastCycle() CycleState {
	if len(r.Cycles) == 0 {
		return CycleState{}
	}
	return r.Cycles[len(r.Cycles)-1]
}
