package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hubfold/tokend/cmd/helpers"
	"github.com/hubfold/tokend/helper"
	"github.com/hubfold/tokend/token"
)

var (
	addUID       string
	addLoginName string
	addName      string
	addPassword  string
	addTemporary bool
	addRemember  bool
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Generate a new token for a user",
	Long: `
Usage: tokend token add --uid=alice --name="alice's phone"

  Generates a new token and prints the raw value exactly once. The raw
  value is never stored; losing it means generating a new token.
  `,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addUID == "" {
			return fmt.Errorf("--uid is required")
		}

		stack, err := helpers.BuildStack(configPath, nil)
		if err != nil {
			return err
		}
		defer stack.Close()

		rawToken, err := helper.GenerateDeviceSecret()
		if err != nil {
			return err
		}

		kind := token.KindPermanent
		if addTemporary {
			kind = token.KindTemporary
		}
		remember := token.DoNotRemember
		if addRemember {
			remember = token.RememberMe
		}
		loginName := addLoginName
		if loginName == "" {
			loginName = addUID
		}
		var password *string
		if addPassword != "" {
			password = &addPassword
		}

		t, err := stack.Manager.GenerateToken(cmd.Context(), rawToken, addUID, loginName, password, addName, kind, remember)
		if err != nil {
			return err
		}

		helpers.PrintTable(cmd.OutOrStdout(), []string{"Key", "Value"}, [][]any{
			{"id", t.GetID()},
			{"uid", t.GetUID()},
			{"name", t.GetName()},
			{"kind", t.GetKind().String()},
			{"token", rawToken},
		})
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addUID, "uid", "", "Owner of the new token")
	addCmd.Flags().StringVar(&addLoginName, "login-name", "", "Login name (defaults to uid)")
	addCmd.Flags().StringVar(&addName, "name", "", "Display name for the token")
	addCmd.Flags().StringVar(&addPassword, "password", "", "Password to seal into the token")
	addCmd.Flags().BoolVar(&addTemporary, "temporary", false, "Create a temporary (session) token")
	addCmd.Flags().BoolVar(&addRemember, "remember", false, "Mark the session token as remember-me")
}
