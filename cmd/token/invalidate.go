package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hubfold/tokend/cmd/helpers"
)

var (
	invalidateUID string
	invalidateID  string
	invalidateAll bool
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Revoke tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		if invalidateUID == "" {
			return fmt.Errorf("--uid is required")
		}
		if !invalidateAll && invalidateID == "" {
			return fmt.Errorf("either --id or --all is required")
		}

		stack, err := helpers.BuildStack(configPath, nil)
		if err != nil {
			return err
		}
		defer stack.Close()

		if invalidateAll {
			if err := stack.Invalidator.InvalidateAllForUser(cmd.Context(), invalidateUID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "All tokens for %s invalidated\n", invalidateUID)
			return nil
		}

		if err := stack.Manager.InvalidateTokenByID(cmd.Context(), invalidateUID, invalidateID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token %s invalidated\n", invalidateID)
		return nil
	},
}

func init() {
	invalidateCmd.Flags().StringVar(&invalidateUID, "uid", "", "Owner of the token")
	invalidateCmd.Flags().StringVar(&invalidateID, "id", "", "Token identifier to revoke")
	invalidateCmd.Flags().BoolVar(&invalidateAll, "all", false, "Revoke every token the user owns")
}
