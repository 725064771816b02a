package tokens

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stephnangue/credcache/cmd/helpers"
)

var (
	removeCmd = &cobra.Command{
		Use:           "remove AUTHORITY CLIENT_ID [RESOURCE]",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "Remove cached entries for an identity",
		Long: `
Usage: credcache tokens remove AUTHORITY CLIENT_ID [RESOURCE]

  Remove the cached entries for the given identity. Without --user every
  user's entry under the identity is removed. Removing an identity that
  has no cached entry succeeds.
`,
		Args: cobra.RangeArgs(2, 3),
		RunE: runRemove,
	}

	removeUserID string
)

func init() {
	removeCmd.Flags().StringVarP(&removeUserID, "user", "u", "", "Remove only this user's entry")
}

func runRemove(cmd *cobra.Command, args []string) error {
	authority, clientID := args[0], args[1]
	resource := ""
	if len(args) == 3 {
		resource = args[2]
	}

	store, logger, err := helpers.OpenStore()
	if err != nil {
		return err
	}
	defer logger.Close()
	defer store.Close()

	if err := store.RemoveItem(context.Background(), authority, resource, clientID, removeUserID); err != nil {
		return fmt.Errorf("failed to remove cached entries: %w", err)
	}

	fmt.Println("Success! Cached entries removed")
	return nil
}
