// Package controller orchestrates convergence runs: repeated cycles over
// an ordered step list, guarded by the shared resource lock, with a
// reboot check after each cycle, until the system converges or the cycle
// budget runs out.
package controller

import (
	"context"
	"fmt"
	"time"

	"converge/internal/executor"
	"converge/internal/lock"
	"converge/internal/logger"
	"converge/internal/metrics"
	"converge/internal/model"
	"converge/internal/reboot"
	"converge/internal/state"
	"converge/internal/step"
	convergeerrors "converge/pkg/errors"
)

// Locker hands out exclusive access to the shared resource for the span
// of one cycle's step iteration. *lock.Lock satisfies it.
type Locker interface {
	Acquire(ctx context.Context) (*lock.Token, error)
}

// Rebooter restarts the machine when auto-reboot is enabled.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// RebootFunc adapts a function into a Rebooter.
type RebootFunc func(ctx context.Context) error

// Reboot calls the wrapped function.
func (f RebootFunc) Reboot(ctx context.Context) error { return f(ctx) }

// Checkpointer persists cycle progress across reboot boundaries.
// *state.Store satisfies it.
type Checkpointer interface {
	Load(plan string) (*state.Checkpoint, error)
	Save(plan string, cp state.Checkpoint) error
	Clear(plan string) error
}

// Options configures a Controller.
type Options struct {
	PlanName     string
	Steps        []step.Step
	MaxCycles    int
	AutoReboot   bool
	Lock         Locker
	RebootSignal reboot.Signal
	Rebooter     Rebooter
	Checkpoints  Checkpointer
	Metrics      *metrics.Metrics
	Logger       *logger.Logger
}

// Controller drives a step set to convergence.
type Controller struct {
	planName   string
	steps      []step.Step
	maxCycles  int
	autoReboot bool
	locker     Locker
	signal     reboot.Signal
	rebooter   Rebooter
	checkpoint Checkpointer
	metrics    *metrics.Metrics
	exec       *executor.Executor
	log        *logger.Logger

	now func() time.Time
}

// New validates options and creates a Controller. The step set is fixed
// for the controller's lifetime; IDs must be unique.
func New(opts Options) (*Controller, error) {
	if len(opts.Steps) == 0 {
		return nil, convergeerrors.NewValidationError("steps", "at least one step is required", nil)
	}

	seen := make(map[string]struct{}, len(opts.Steps))
	for _, s := range opts.Steps {
		if s.ID() == "" {
			return nil, convergeerrors.NewValidationError("steps", "step with empty id", nil)
		}
		if _, dup := seen[s.ID()]; dup {
			return nil, convergeerrors.NewValidationError("steps", fmt.Sprintf("duplicate step id %q", s.ID()), nil)
		}
		seen[s.ID()] = struct{}{}
	}

	maxCycles := opts.MaxCycles
	if maxCycles <= 0 {
		maxCycles = 5
	}

	signal := opts.RebootSignal
	if signal == nil {
		signal = reboot.Static(false)
	}

	locker := opts.Lock
	if locker == nil {
		locker = noopLocker{}
	}

	return &Controller{
		planName:   opts.PlanName,
		steps:      opts.Steps,
		maxCycles:  maxCycles,
		autoReboot: opts.AutoReboot,
		locker:     locker,
		signal:     signal,
		rebooter:   opts.Rebooter,
		checkpoint: opts.Checkpoints,
		metrics:    opts.Metrics,
		exec:       executor.New(opts.Logger),
		log:        opts.Logger,
		now:        time.Now,
	}, nil
}

// Run executes convergence cycles until one terminal state is reached:
// converged, reboot pending, budget exhausted, or fatal error. The cycle
// budget spans reboot boundaries when a Checkpointer is configured.
func (c *Controller) Run(ctx context.Context) model.RunState {
	run := model.RunState{MaxCycles: c.maxCycles}

	cyclesUsed := c.resumeFrom()
	run.CyclesUsed = cyclesUsed

	for n := cyclesUsed + 1; n <= c.maxCycles; n++ {
		cycle, fatal := c.runCycle(ctx, n)
		run.Cycles = append(run.Cycles, cycle)
		run.CyclesUsed = n
		c.metrics.ObserveCycle(cycle)
		c.metrics.SetRebootPending(cycle.RebootRequired)

		if fatal != nil {
			run.Termination = model.TerminationFatalError
			run.Err = fatal
			c.clearCheckpoint()
			c.logSummary(run)
			return run
		}

		if cycle.RebootRequired {
			run.RebootPending = true
			c.saveCheckpoint(n)

			if !c.autoReboot {
				run.Termination = model.TerminationRebootPending
				c.log.Component("controller").With(map[string]any{"cycle": n}).Warn("reboot required, stopping for caller")
				c.logSummary(run)
				return run
			}

			if err := c.requestReboot(ctx); err != nil {
				run.Termination = model.TerminationFatalError
				run.Err = err
				c.logSummary(run)
				return run
			}

			// The process ends at the reboot boundary; the next
			// invocation resumes from the checkpoint.
			run.Termination = model.TerminationRebootPending
			c.logSummary(run)
			return run
		}

		if cycle.Converged() {
			run.Converged = true
			run.Termination = model.TerminationConverged
			c.clearCheckpoint()
			c.logSummary(run)
			return run
		}
	}

	run.Termination = model.TerminationBudgetExhausted
	c.clearCheckpoint()
	c.logSummary(run)
	return run
}

// runCycle acquires the lock, runs every step in order, releases the
// lock, and evaluates the reboot signal. The returned error is non-nil
// only for fatal conditions: lock timeout, context cancellation, or a
// critical step failure.
func (c *Controller) runCycle(ctx context.Context, n int) (model.CycleState, error) {
	cycle := model.CycleState{Cycle: n}
	start := c.now()

	c.log.Component("controller").With(map[string]any{"cycle": n, "steps": len(c.steps)}).Info("starting convergence cycle")

	lockStart := c.now()
	token, err := c.locker.Acquire(ctx)
	if err != nil {
		cycle.Duration = c.now().Sub(start)
		return cycle, err
	}
	c.metrics.ObserveLockWait(c.now().Sub(lockStart))

	fatal := func() error {
		defer token.Release() //nolint:errcheck

		for _, s := range c.steps {
			if err := ctx.Err(); err != nil {
				return err
			}

			result := c.exec.Execute(ctx, s)
			cycle.Record(result)

			if result.IsFailure() && step.IsCritical(s) {
				return fmt.Errorf("critical step failed: %w", result.Error)
			}
		}
		return nil
	}()

	if fatal != nil {
		cycle.Duration = c.now().Sub(start)
		return cycle, fatal
	}

	required, err := c.signal.IsRebootRequired(ctx)
	if err != nil {
		// A broken reboot probe must not kill an otherwise healthy
		// run; assume no reboot and carry on.
		c.log.Component("controller").Error(err, "reboot signal failed, assuming none pending")
		required = false
	}
	cycle.RebootRequired = required
	cycle.Duration = c.now().Sub(start)

	c.log.Component("controller").With(map[string]any{
		"cycle":             n,
		"applied":           cycle.Applied,
		"already_satisfied": cycle.AlreadySatisfied,
		"skipped":           cycle.Skipped,
		"failed":            cycle.Failed,
		"reboot_required":   cycle.RebootRequired,
	}).Info("cycle complete")

	return cycle, nil
}

func (c *Controller) requestReboot(ctx context.Context) error {
	if c.rebooter == nil {
		return fmt.Errorf("auto reboot requested but no rebooter configured")
	}
	c.log.Component("controller").Warn("reboot required, restarting machine")
	if err := c.rebooter.Reboot(ctx); err != nil {
		return fmt.Errorf("request reboot: %w", err)
	}
	return nil
}

func (c *Controller) resumeFrom() int {
	if c.checkpoint == nil {
		return 0
	}
	cp, err := c.checkpoint.Load(c.planName)
	if err != nil {
		c.log.Component("controller").Error(err, "loading checkpoint failed, starting fresh")
		return 0
	}
	if cp == nil {
		return 0
	}
	c.log.Component("controller").With(map[string]any{"cycles_used": cp.CyclesUsed}).Info("resuming from checkpoint")
	return cp.CyclesUsed
}

func (c *Controller) saveCheckpoint(cyclesUsed int) {
	if c.checkpoint == nil {
		return
	}
	cp := state.Checkpoint{CyclesUsed: cyclesUsed, RebootPending: true, UpdatedAt: c.now().UTC()}
	if err := c.checkpoint.Save(c.planName, cp); err != nil {
		c.log.Component("controller").Error(err, "saving checkpoint failed")
	}
}

func (c *Controller) clearCheckpoint() {
	if c.checkpoint == nil {
		return
	}
	if err := c.checkpoint.Clear(c.planName); err != nil {
		c.log.Component("controller").Error(err, "clearing checkpoint failed")
	}
}

func (c *Controller) logSummary(run model.RunState) {
	applied, satisfied, skipped, failed := run.Totals()
	c.log.Component("controller").With(map[string]any{
		"termination":       string(run.Termination),
		"cycles_used":       run.CyclesUsed,
		"max_cycles":        run.MaxCycles,
		"applied":           applied,
		"already_satisfied": satisfied,
		"skipped":           skipped,
		"failed":            failed,
		"reboot_pending":    run.RebootPending,
	}).Info("run finished")
}

// noopLocker grants access unconditionally, for callers whose steps do
// not contend on an external resource.
type noopLocker struct{}

func (noopLocker) Acquire(ctx context.Context) (*lock.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return lock.NoopToken(), nil
}
