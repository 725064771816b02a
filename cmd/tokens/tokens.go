// Package tokens holds the CLI commands that inspect and mutate the token
// cache.
package tokens

import (
	"github.com/spf13/cobra"
)

var TokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Inspect and manage cached tokens",
}

func init() {
	TokensCmd.AddCommand(listCmd)
	TokensCmd.AddCommand(getCmd)
	TokensCmd.AddCommand(removeCmd)
	TokensCmd.AddCommand(removeAllCmd)
}
