package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stephnangue/credcache/cmd/migrate"
	"github.com/stephnangue/credcache/cmd/tokens"
)

var (
	// Global flag for the configuration file
	flagConfig string

	credcacheCmd = &cobra.Command{
		Use:   "credcache",
		Short: "Credcache is a shared token cache over a secure attribute store",
		Long: `Credcache stores access and refresh tokens in a secure key-value store,
keyed by authority, resource, client and user. It repairs duplicated records,
migrates entries between storage groups and serves cached tokens to local
tooling.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Make the config path visible to subcommand packages
			if flagConfig != "" {
				os.Setenv("CREDCACHE_CONFIG", flagConfig)
			}
		},
	}
)

func Execute() {
	if err := credcacheCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	credcacheCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to the credcache configuration file (can also use CREDCACHE_CONFIG env var)")

	credcacheCmd.AddCommand(tokens.TokensCmd)
	credcacheCmd.AddCommand(migrate.MigrateCmd)
}
