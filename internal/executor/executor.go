// Package executor runs a single step and classifies its outcome. A
// step's failure is contained here: it becomes a counted result, never an
// abort of the surrounding cycle.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"converge/internal/logger"
	"converge/internal/model"
	"converge/internal/step"
	convergeerrors "converge/pkg/errors"
)

// Executor classifies step attempts into outcomes.
type Executor struct {
	log *logger.Logger
}

// New creates an Executor.
func New(log *logger.Logger) *Executor {
	return &Executor{log: log}
}

// Execute probes the step and, when unsatisfied, applies it. The returned
// result always carries exactly one outcome; errors raised by the step are
// captured in the result rather than propagated.
func (e *Executor) Execute(ctx context.Context, s step.Step) model.StepResult {
	start := time.Now()
	result := model.StepResult{StepID: s.ID(), Timestamp: start}

	satisfied, err := probe(ctx, s)
	if err != nil {
		result.Outcome = model.OutcomeFailed
		result.Error = convergeerrors.NewStepError(s.ID(), err)
		result.Message = fmt.Sprintf("probe failed: %v", err)
		result.Duration = time.Since(start)
		e.log.With(map[string]any{"step": s.ID()}).Error(err, "step probe failed")
		return result
	}

	if satisfied {
		result.Outcome = model.OutcomeAlreadySatisfied
		result.Message = "already satisfied"
		result.Duration = time.Since(start)
		e.log.With(map[string]any{"step": s.ID()}).Debug("step already satisfied")
		return result
	}

	err = apply(ctx, s)
	result.Duration = time.Since(start)

	switch {
	case err == nil:
		result.Outcome = model.OutcomeApplied
		result.Message = "applied"
		e.log.With(map[string]any{"step": s.ID(), "duration": result.Duration.String()}).Info("step applied")
	case errors.Is(err, step.ErrSkip):
		result.Outcome = model.OutcomeSkipped
		result.Message = skipMessage(err)
		e.log.With(map[string]any{"step": s.ID()}).Debug("step skipped")
	default:
		result.Outcome = model.OutcomeFailed
		result.Error = convergeerrors.NewStepError(s.ID(), err)
		result.Message = err.Error()
		e.log.With(map[string]any{"step": s.ID()}).Error(err, "step apply failed")
	}

	return result
}

func probe(ctx context.Context, s step.Step) (satisfied bool, err error) {
	defer recoverToError(s.ID(), &err)
	return s.Probe(ctx)
}

func apply(ctx context.Context, s step.Step) (err error) {
	defer recoverToError(s.ID(), &err)
	return s.Apply(ctx)
}

// recoverToError converts a step panic into an ordinary failure so one
// broken step cannot take down the run.
func recoverToError(stepID string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("step %s panicked: %v", stepID, r)
	}
}

func skipMessage(err error) string {
	if errors.Is(err, step.ErrSkip) && err.Error() != step.ErrSkip.Error() {
		return err.Error()
	}
	return "skipped"
}
