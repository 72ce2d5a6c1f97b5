package model

import (
	"time"
)

// CycleState accumulates the counts and flags for one pass over the step
// list. A cycle is built up while steps run and treated as immutable once
// the controller has recorded it.
type CycleState struct {
	Cycle            int
	Applied          int
	AlreadySatisfied int
	Skipped          int
	Failed           int
	RebootRequired   bool
	Duration         time.Duration
	Results          []StepResult
}

// Record counts a step result into the cycle.
func (c *CycleState) Record(result StepResult) {
	c.Results = append(c.Results, result)
	switch result.Outcome {
	case OutcomeApplied:
		c.Applied++
	case OutcomeAlreadySatisfied:
		c.AlreadySatisfied++
	case OutcomeSkipped:
		c.Skipped++
	case OutcomeFailed:
		c.Failed++
	}
}

// Total returns the number of step attempts recorded in the cycle. It always
// equals Applied + AlreadySatisfied + Skipped + Failed.
func (c CycleState) Total() int {
	return c.Applied + c.AlreadySatisfied + c.Skipped + c.Failed
}

// Converged reports whether this cycle found no remaining work: every step
// probed satisfied and no reboot is pending.
func (c CycleState) Converged() bool {
	return c.AlreadySatisfied == c.Total() && !c.RebootRequired
}
