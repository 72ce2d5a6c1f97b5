// Package step defines the unit-of-work contract the convergence
// controller drives, and the registry that builds steps from plan
// configuration.
package step

import (
	"context"
	"errors"
)

// ErrSkip is returned from Apply by a step that declines to run, for
// example because it does not apply to the current platform. The executor
// records the attempt as skipped rather than failed.
var ErrSkip = errors.New("step skipped")

// Step is one idempotent unit of provisioning work.
//
// Probe MUST be free of side effects: it only reads system state and
// reports whether the step's desired state already holds. Apply mutates
// the system toward that state and must be safe to call again on a later
// cycle. IDs are stable across cycles so progress can be matched.
type Step interface {
	// ID returns the step's identifier, unique within a run.
	ID() string

	// Probe reports whether the step is already satisfied.
	Probe(ctx context.Context) (bool, error)

	// Apply performs the step's work. Returning ErrSkip (possibly
	// wrapped) marks the attempt as voluntarily skipped.
	Apply(ctx context.Context) error
}

// CriticalStep is optionally implemented by steps whose failure must
// abort the whole run instead of being counted and carried.
type CriticalStep interface {
	Critical() bool
}

// IsCritical reports whether a step declares itself critical.
func IsCritical(s Step) bool {
	c, ok := s.(CriticalStep)
	return ok && c.Critical()
}

// Func adapts plain functions into a Step. Nil Probe behaves as "never
// satisfied"; nil Apply is a no-op.
type Func struct {
	Name    string
	ProbeFn func(ctx context.Context) (bool, error)
	ApplyFn func(ctx context.Context) error
	Fatal   bool
}

var (
	_ Step         = Func{}
	_ CriticalStep = Func{}
)

func (f Func) ID() string { return f.Name }

// Critical reports whether a failure of this step aborts the run.
func (f Func) Critical() bool { return f.Fatal }

func (f Func) Probe(ctx context.Context) (bool, error) {
	if f.ProbeFn == nil {
		return false, nil
	}
	return f.ProbeFn(ctx)
}

func (f Func) Apply(ctx context.Context) error {
	if f.ApplyFn == nil {
		return nil
	}
	return f.ApplyFn(ctx)
}
