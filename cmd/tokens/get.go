package tokens

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stephnangue/credcache/cmd/helpers"
	"github.com/stephnangue/credcache/credential"
)

var (
	getCmd = &cobra.Command{
		Use:           "get AUTHORITY CLIENT_ID [RESOURCE]",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "Show one cached entry",
		Long: `
Usage: credcache tokens get AUTHORITY CLIENT_ID [RESOURCE]

  Show the cached entry for the given identity. When several users hold
  entries under it, --user selects one. Token values are masked unless
  --reveal is set.
`,
		Args: cobra.RangeArgs(2, 3),
		RunE: runGet,
	}

	getUserID string
	getReveal bool
)

func init() {
	getCmd.Flags().StringVarP(&getUserID, "user", "u", "", "User ID to select when several users are cached")
	getCmd.Flags().BoolVar(&getReveal, "reveal", false, "Print token values instead of masking them")
}

func runGet(cmd *cobra.Command, args []string) error {
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

	entry, err := store.GetItem(context.Background(), authority, resource, clientID, getUserID)
	if err != nil {
		return fmt.Errorf("failed to read cached entry: %w", err)
	}
	if entry == nil {
		fmt.Fprintln(os.Stderr, "No cached entry found")
		return nil
	}

	fields := map[string]string{
		"kind":          entry.Kind.String(),
		"authority":     entry.Authority,
		"client_id":     entry.ClientID,
		"access_token":  entry.AccessToken,
		"refresh_token": entry.RefreshToken,
	}
	if entry.Resource != "" {
		fields["resource"] = entry.Resource
	}
	if entry.FamilyID != "" {
		fields["family_id"] = entry.FamilyID
	}
	if entry.UserInfo != nil {
		fields["user_id"] = entry.UserInfo.UserID
		if entry.UserInfo.DisplayName != "" {
			fields["display_name"] = entry.UserInfo.DisplayName
		}
		if entry.UserInfo.TenantID != "" {
			fields["tenant_id"] = entry.UserInfo.TenantID
		}
	}
	if entry.Kind == credential.AccessToken {
		fields["expires_on"] = entry.ExpiresOn.Format("2006-01-02 15:04:05 MST")
	}

	if !getReveal {
		fields = helpers.MaskConfigFields([]string{"access_token", "refresh_token"}, fields)
	}

	rows := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == "" {
			continue
		}
		rows[k] = v
	}
	helpers.PrintMapAsTable(rows)
	return nil
}
