package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hubfold/tokend/cmd/server"
	tokencmd "github.com/hubfold/tokend/cmd/token"
	"github.com/hubfold/tokend/cmd/wipe"
)

var tokendCmd = &cobra.Command{
	Use:   "tokend",
	Short: "Tokend manages the lifecycle of authentication tokens",
	Long: `Tokend issues, resolves and revokes device authentication tokens.
Raw token values are handed out once and never stored; records are kept
under a salted hash, passwords are sealed to per-token key pairs, and
retention sweeps remove idle tokens automatically.`,
}

func Execute() {
	if err := tokendCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	tokendCmd.AddCommand(server.ServerCmd)
	tokendCmd.AddCommand(tokencmd.TokenCmd)
	tokendCmd.AddCommand(wipe.WipeCmd)
}
