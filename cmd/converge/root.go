package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "converge",
		Short: "Converge drives idempotent provisioning steps to a stable state",
		Long: `Converge runs an ordered set of idempotent provisioning steps in
repeated cycles, guarded by the package manager's lock, until the system
has nothing left to do or the cycle budget is spent. Reboot requirements
are detected between cycles and either reported to the caller or, with
auto-reboot enabled, acted on directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newVerifyCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
