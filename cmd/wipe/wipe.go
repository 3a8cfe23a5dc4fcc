package wipe

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hubfold/tokend/cmd/helpers"
)

var (
	configPath string
	markUID    string
	markID     string
)

// WipeCmd is the parent of the remote wipe commands
var WipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Manage remote device wipes",
}

var markCmd = &cobra.Command{
	Use:   "mark",
	Short: "Flag tokens for remote device wipe",
	Long: `
Usage: tokend wipe mark --uid=alice [--id=<token-id>]

  Flags a token, or all of a user's tokens, for remote wipe. The next
  time the device uses the token it receives the wipe signal instead of
  a session; the token is revoked once the device confirms completion.
  `,
	RunE: func(cmd *cobra.Command, args []string) error {
		if markUID == "" {
			return fmt.Errorf("--uid is required")
		}

		stack, err := helpers.BuildStack(configPath, nil)
		if err != nil {
			return err
		}
		defer stack.Close()

		if markID != "" {
			t, err := stack.Manager.GetUserTokenByID(cmd.Context(), markUID, markID)
			if err != nil {
				return err
			}
			if err := stack.RemoteWipe.MarkTokenForWipe(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token %s marked for remote wipe\n", markID)
			return nil
		}

		marked, err := stack.RemoteWipe.MarkAllTokensForWipe(cmd.Context(), markUID)
		if err != nil {
			return err
		}
		if !marked {
			fmt.Fprintf(cmd.OutOrStdout(), "No tokens of %s could be marked for wipe\n", markUID)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "All tokens of %s marked for remote wipe\n", markUID)
		return nil
	},
}

func init() {
	WipeCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (e.g., path/to/tokend.hcl)")
	markCmd.Flags().StringVar(&markUID, "uid", "", "Owner of the tokens")
	markCmd.Flags().StringVar(&markID, "id", "", "Specific token identifier to flag")

	WipeCmd.AddCommand(markCmd)
}
