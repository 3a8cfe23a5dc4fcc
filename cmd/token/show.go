package token

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hubfold/tokend/cmd/helpers"
	"github.com/hubfold/tokend/helper"
	tokend "github.com/hubfold/tokend/token"
)

var (
	showUID string
	showID  string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a single token's details",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showUID == "" {
			return fmt.Errorf("--uid is required")
		}
		if showID == "" {
			return fmt.Errorf("--id is required")
		}

		stack, err := helpers.BuildStack(configPath, nil)
		if err != nil {
			return err
		}
		defer stack.Close()

		tok, err := stack.Manager.GetUserTokenByID(cmd.Context(), showUID, showID)
		if err != nil {
			// A wipe-flagged token is still worth inspecting
			var wipeErr *tokend.WipeRequestError
			if !errors.As(err, &wipeErr) {
				return err
			}
			tok = wipeErr.Token
		}

		scopes := make([]string, 0, len(tok.GetScope()))
		for name, enabled := range tok.GetScope() {
			if enabled {
				scopes = append(scopes, name)
			}
		}
		sort.Strings(scopes)

		now := time.Now()
		details := map[string]any{
			"id":            tok.GetID(),
			"uid":           tok.GetUID(),
			"login_name":    tok.GetLoginName(),
			"name":          tok.GetName(),
			"kind":          tok.GetKind().String(),
			"remember":      tok.GetRemember().String(),
			"scope":         strings.Join(scopes, ", "),
			"last_activity": helper.FormatAge(tok.GetLastActivity(), now),
			"last_check":    helper.FormatAge(tok.GetLastCheck(), now),
		}
		if exp := tok.GetExpires(); exp != nil {
			details["expires"] = time.Unix(*exp, 0).UTC().Format(time.RFC3339)
		}

		helpers.PrintMapAsTable(cmd.OutOrStdout(), details)
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&showUID, "uid", "", "Owner of the token")
	showCmd.Flags().StringVar(&showID, "id", "", "Token identifier to show")
}
