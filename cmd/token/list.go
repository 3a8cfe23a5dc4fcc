package token

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hubfold/tokend/cmd/helpers"
	"github.com/hubfold/tokend/helper"
)

var listUID string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listUID == "" {
			return fmt.Errorf("--uid is required")
		}

		stack, err := helpers.BuildStack(configPath, nil)
		if err != nil {
			return err
		}
		defer stack.Close()

		tokens, err := stack.Manager.GetTokensByUser(cmd.Context(), listUID)
		if err != nil {
			return err
		}

		now := time.Now()
		data := make([][]any, 0, len(tokens))
		for _, t := range tokens {
			data = append(data, []any{
				t.GetID(),
				t.GetName(),
				t.GetKind().String(),
				t.GetRemember().String(),
				helper.FormatAge(t.GetLastActivity(), now),
			})
		}

		helpers.PrintTable(cmd.OutOrStdout(), []string{"ID", "Name", "Kind", "Remember", "Last Activity"}, data)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listUID, "uid", "", "User whose tokens to list")
}
