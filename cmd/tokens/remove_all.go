package tokens

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stephnangue/credcache/cmd/helpers"
)

var (
	removeAllCmd = &cobra.Command{
		Use:           "remove-all",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "Remove every cached entry in the storage group",
		Long: `
Usage: credcache tokens remove-all

  Remove every cached entry in the configured storage group. Asks for
  confirmation unless --force is set.
`,
		Args: cobra.NoArgs,
		RunE: runRemoveAll,
	}

	removeAllForce bool
)

func init() {
	removeAllCmd.Flags().BoolVar(&removeAllForce, "force", false, "Skip the confirmation prompt")
}

func runRemoveAll(cmd *cobra.Command, args []string) error {
	store, logger, err := helpers.OpenStore()
	if err != nil {
		return err
	}
	defer logger.Close()
	defer store.Close()

	if !removeAllForce {
		fmt.Printf("Remove every cached entry in group %q? Only 'yes' proceeds: ", store.Group())
		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := store.RemoveAll(context.Background()); err != nil {
		return fmt.Errorf("failed to remove cached entries: %w", err)
	}

	fmt.Println("Success! All cached entries removed")
	return nil
}
