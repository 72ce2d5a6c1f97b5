package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"converge/internal/config"
)

type verifyOptions struct {
	PlanPath string
	Verbose  bool
}

var verifyCmdRunner = runVerify

func newVerifyCmd(root *rootFlags) *cobra.Command {
	opts := verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Probe every step without making changes",
		Long: `Verify runs each step's probe and reports whether the system already
satisfies the plan. Nothing is applied. Exit code 0 means every step is
satisfied, exit code 1 means at least one step still has work to do.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Verbose = root.verbose

			if err := validatePlanPath(opts.PlanPath); err != nil {
				return err
			}

			return verifyCmdRunner(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.PlanPath, "plan", "p", "", "Path to the plan file")
	cmd.MarkFlagRequired("plan") //nolint:errcheck

	return cmd
}

func runVerify(cmd *cobra.Command, opts verifyOptions) error {
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

	out := cmd.OutOrStdout()
	pending := 0
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		satisfied, err := s.Probe(ctx)
		switch {
		case err != nil:
			pending++
			log.Component("verify").With(map[string]any{"step": s.ID()}).Error(err, "probe failed")
			fmt.Fprintf(out, "  ? %s (probe failed: %v)\n", s.ID(), err)
		case satisfied:
			fmt.Fprintf(out, "  ✓ %s\n", s.ID())
		default:
			pending++
			fmt.Fprintf(out, "  ✗ %s (not satisfied)\n", s.ID())
		}
	}

	if pending > 0 {
		fmt.Fprintf(out, "%d of %d steps need changes\n", pending, len(steps))
		return &exitError{code: exitFatal, reason: ""}
	}

	fmt.Fprintf(out, "all %d steps satisfied\n", len(steps))
	return nil
}
