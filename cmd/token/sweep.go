package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hubfold/tokend/cmd/helpers"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the retention sweeps once",
	Long: `
Usage: tokend token sweep --config=/etc/tokend/config.hcl

  Removes tokens that fell out of their retention window: idle
  sessions, idle remember-me sessions, stale wipe flags and idle
  permanent tokens. The server runs this periodically on its own; the
  command exists for cron-style setups and one-off cleanups.
  `,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := helpers.BuildStack(configPath, nil)
		if err != nil {
			return err
		}
		defer stack.Close()

		if err := stack.Provider.InvalidateOldTokens(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Retention sweeps completed")
		return nil
	},
}
