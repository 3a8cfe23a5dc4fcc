package token

import (
	"github.com/spf13/cobra"
)

var configPath string

// TokenCmd is the parent of the token lifecycle commands
var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage authentication tokens",
}

func init() {
	TokenCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (e.g., path/to/tokend.hcl)")

	TokenCmd.AddCommand(listCmd)
	TokenCmd.AddCommand(showCmd)
	TokenCmd.AddCommand(addCmd)
	TokenCmd.AddCommand(invalidateCmd)
	TokenCmd.AddCommand(sweepCmd)
}
