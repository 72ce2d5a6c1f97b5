package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"converge/internal/config"
	"converge/internal/controller"
	"converge/internal/lock"
	"converge/internal/logger"
	"converge/internal/metrics"
	"converge/internal/model"
	"converge/internal/reboot"
	"converge/internal/report"
	"converge/internal/state"
	"converge/internal/step"
)

// Process exit codes. Converged runs exit zero; the non-zero codes let
// an outer provisioner tell "give up" apart from "reboot and re-invoke".
const (
	exitFatal           = 1
	exitBudgetExhausted = 2
	exitRebootPending   = 3
)

const defaultRebootMarker = "/var/run/reboot-required"

type runOptions struct {
	PlanPath string
	Verbose  bool
}

var runCmdRunner = runPlan

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a convergence plan until the system is stable",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Verbose = root.verbose

			if err := validatePlanPath(opts.PlanPath); err != nil {
				return err
			}

			return runCmdRunner(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.PlanPath, "plan", "p", "", "Path to the plan file")
	cmd.MarkFlagRequired("plan") //nolint:errcheck

	return cmd
}

func runPlan(cmd *cobra.Command, opts runOptions) error {
	plan, err := config.ParsePlan(opts.PlanPath)
	if err != nil {
		return err
	}

	log, err := newLogger(plan.Settings.Verbose || opts.Verbose)
	if err != nil {
		return err
	}

	steps, err := buildSteps(plan)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrlOpts := controller.Options{
		PlanName:     plan.Name,
		Steps:        steps,
		MaxCycles:    plan.Settings.MaxCyclesOrDefault(),
		AutoReboot:   plan.Settings.AutoReboot,
		RebootSignal: rebootSignal(plan.Settings),
		Rebooter:     systemRebooter(),
		Logger:       log,
	}

	if len(plan.Settings.LockFiles) > 0 {
		resource := lock.NewFileResource(lockResourceName(plan.Settings), plan.Settings.LockFiles...)
		ctrlOpts.Lock = lock.New(resource,
			lock.WithMaxWait(plan.Settings.LockTimeoutOrDefault()),
			lock.WithPollInterval(plan.Settings.PollIntervalOrDefault()),
			lock.WithLogger(log),
		)
	}

	if plan.Settings.StateDB != "" {
		store, err := state.Open(plan.Settings.StateDB)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck
		ctrlOpts.Checkpoints = store
	}

	m := metrics.New()
	m.Serve(ctx, plan.Settings.MetricsListen, log)
	ctrlOpts.Metrics = m

	ctrl, err := controller.New(ctrlOpts)
	if err != nil {
		return err
	}

	run := ctrl.Run(ctx)
	fmt.Fprintln(cmd.OutOrStdout(), report.Render(plan.Name, run))

	return exitFor(run)
}

func exitFor(run model.RunState) error {
	switch run.Termination {
	case model.TerminationConverged:
		return nil
	case model.TerminationBudgetExhausted:
		return &exitError{code: exitBudgetExhausted, reason: "cycle budget exhausted without convergence"}
	case model.TerminationRebootPending:
		return &exitError{code: exitRebootPending, reason: "reboot required, re-invoke after restart"}
	default:
		reason := "run failed"
		if run.Err != nil {
			reason = run.Err.Error()
		}
		return &exitError{code: exitFatal, reason: reason}
	}
}

func rebootSignal(settings config.Settings) reboot.Signal {
	markers := settings.RebootMarkers
	if len(markers) == 0 {
		markers = []string{defaultRebootMarker}
	}
	return reboot.FromMarkers(markers)
}

func lockResourceName(settings config.Settings) string {
	if settings.LockResource != "" {
		return settings.LockResource
	}
	return "packages"
}

func systemRebooter() controller.Rebooter {
	return controller.RebootFunc(func(ctx context.Context) error {
		return exec.CommandContext(ctx, "shutdown", "-r", "+0").Run()
	})
}

func newLogger(verbose bool) (*logger.Logger, error) {
	level := "info"
	if verbose {
		level = "debug"
	}
	return logger.New(logger.Options{
		Level:   level,
		Console: term.IsTerminal(int(os.Stderr.Fd())),
	})
}

func buildSteps(plan *config.Plan) ([]step.Step, error) {
	registry, err := newStepRegistry()
	if err != nil {
		return nil, err
	}
	return registry.BuildAll(plan.Steps, step.Env{Categories: plan.Settings.Categories})
}
