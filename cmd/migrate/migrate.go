// Package migrate holds the CLI command that moves the cache to another
// storage group.
package migrate

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stephnangue/credcache/cmd/helpers"
)

var MigrateCmd = &cobra.Command{
	Use:           "migrate-group NEW_GROUP",
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "Move cached entries to another storage group",
	Long: `
Usage: credcache migrate-group NEW_GROUP

  Copy every readable entry from the configured storage group into
  NEW_GROUP and point the cache at it. Entries in the old group are left
  in place. Partial failures are reported per entry; rerunning the
  command finishes the migration.

  The configuration file still names the old group afterwards: update its
  cache block so later commands target NEW_GROUP.
`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	newGroup := args[0]

	store, logger, err := helpers.OpenStore()
	if err != nil {
		return err
	}
	defer logger.Close()
	defer store.Close()

	oldGroup := store.Group()
	if err := store.ChangeStorageGroup(context.Background(), newGroup); err != nil {
		return fmt.Errorf("failed to migrate from group %q to %q: %w", oldGroup, newGroup, err)
	}

	fmt.Printf("Success! Cached entries migrated from group %q to %q\n", oldGroup, newGroup)
	return nil
}
