package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stephnangue/credcache/cmd/helpers"
	"github.com/stephnangue/credcache/credential"
)

var (
	listCmd = &cobra.Command{
		Use:           "list AUTHORITY CLIENT_ID [RESOURCE]",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "List cached entries for an identity",
		Long: `
Usage: credcache tokens list AUTHORITY CLIENT_ID [RESOURCE]

  List every cached entry for the given authority, client and optional
  resource, one row per user. Token values are masked.

  Examples:

    List entries for a client against one resource:

      $ credcache tokens list https://login.example.net client-42 api://billing

    List resource-independent refresh tokens of a client:

      $ credcache tokens list https://login.example.net client-42
`,
		Args: cobra.RangeArgs(2, 3),
		RunE: runList,
	}

	listOutputFormat string
)

func init() {
	listCmd.Flags().StringVarP(&listOutputFormat, "format", "f", "table", "Output format: table, json")
}

func runList(cmd *cobra.Command, args []string) error {
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

	entries, err := store.GetItems(context.Background(), authority, resource, clientID)
	if err != nil {
		return fmt.Errorf("failed to list cached entries: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No cached entries found")
		return nil
	}

	switch listOutputFormat {
	case "json":
		return outputListJSON(entries)
	case "table":
		printEntries(entries)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", listOutputFormat)
	}
}

func printEntries(entries []*credential.CacheEntry) {
	var rows [][]any
	for _, entry := range entries {
		rows = append(rows, []any{
			entry.Kind.String(),
			userColumn(entry),
			entry.Resource,
			expiryColumn(entry),
		})
	}
	helpers.PrintTable([]string{"Kind", "User", "Resource", "Expires"}, rows)
}

func userColumn(entry *credential.CacheEntry) string {
	if entry.UserInfo == nil {
		return "(unknown)"
	}
	return entry.UserInfo.UserID
}

func expiryColumn(entry *credential.CacheEntry) string {
	if entry.Kind != credential.AccessToken {
		return "-"
	}
	return entry.ExpiresOn.Format("2006-01-02 15:04:05 MST")
}

type listedEntry struct {
	Kind      string `json:"kind"`
	Authority string `json:"authority"`
	Resource  string `json:"resource,omitempty"`
	ClientID  string `json:"client_id"`
	FamilyID  string `json:"family_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ExpiresOn string `json:"expires_on,omitempty"`
}

func outputListJSON(entries []*credential.CacheEntry) error {
	listed := make([]listedEntry, 0, len(entries))
	for _, entry := range entries {
		item := listedEntry{
			Kind:      entry.Kind.String(),
			Authority: entry.Authority,
			Resource:  entry.Resource,
			ClientID:  entry.ClientID,
			FamilyID:  entry.FamilyID,
			UserID:    entry.UserID(),
		}
		if entry.Kind == credential.AccessToken {
			item.ExpiresOn = entry.ExpiresOn.Format("2006-01-02T15:04:05Z07:00")
		}
		listed = append(listed, item)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(listed)
}
