package model

import (
	"time"
)

// Outcome classifies a single step attempt within one cycle.
type Outcome string

const (
	// OutcomeApplied means the step's apply ran and completed.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadySatisfied means the probe found nothing to do.
	OutcomeAlreadySatisfied Outcome = "already_satisfied"
	// OutcomeSkipped means the step declined to run, e.g. wrong platform.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means probing or applying the step errored.
	OutcomeFailed Outcome = "failed"
)

// StepResult captures the outcome of one step attempt.
type StepResult struct {
	StepID    string
	Outcome   Outcome
	Message   string
	Error     error
	Duration  time.Duration
	Timestamp time.Time
}

// IsFailure returns true when the attempt failed.
func (r StepResult) IsFailure() bool {
	return r.Outcome == OutcomeFailed
}
