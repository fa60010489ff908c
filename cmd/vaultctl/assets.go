package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	assetsCmd := &cobra.Command{Use: "assets", Short: "Asset operations"}

	var offset, limit int
	listCmd := &cobra.Command{
		Use:   "list VAULT_ID",
		Short: "List a vault's assets (members only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/vaults/%s/assets?offset=%d", args[0], offset)
			if limit > 0 {
				path += fmt.Sprintf("&limit=%d", limit)
			}
			data, err := getJSON(path)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	listCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	listCmd.Flags().IntVar(&limit, "limit", 0, "Page size (all when omitted)")
	assetsCmd.AddCommand(listCmd)

	var assetType, content string
	createCmd := &cobra.Command{
		Use:   "create VAULT_ID",
		Short: "Store an inline asset in a vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := postJSON(fmt.Sprintf("/api/vaults/%s/assets", args[0]), map[string]string{
				"type": assetType, "content": content,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVar(&assetType, "type", "note", "Asset type")
	createCmd.Flags().StringVarP(&content, "content", "c", "", "Asset content (required)")
	_ = createCmd.MarkFlagRequired("content")
	assetsCmd.AddCommand(createCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete ASSET_ID",
		Short: "Delete one asset (uploader or vault creator)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := deleteJSON("/api/assets/" + args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "deleted")
			return nil
		},
	}
	assetsCmd.AddCommand(deleteCmd)

	purgeCmd := &cobra.Command{
		Use:   "purge-vault VAULT_ID",
		Short: "Delete all assets in a vault (creator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := deleteJSON(fmt.Sprintf("/api/vaults/%s/assets", args[0])); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "purged")
			return nil
		},
	}
	assetsCmd.AddCommand(purgeCmd)

	rootCmd.AddCommand(assetsCmd)
}
