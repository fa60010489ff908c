package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	invitesCmd := &cobra.Command{Use: "invites", Short: "Invite operations"}

	issueCmd := &cobra.Command{
		Use:   "issue VAULT_ID",
		Short: "Issue an invite QR for a vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := getJSON(fmt.Sprintf("/api/vaults/%s/invite", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	invitesCmd.AddCommand(issueCmd)

	var payload string
	redeemCmd := &cobra.Command{
		Use:   "redeem",
		Short: "Redeem a scanned invite payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			if payload == "" {
				return fmt.Errorf("--payload required")
			}
			data, err := postJSON("/api/invites/redeem", map[string]string{"payload": payload})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	redeemCmd.Flags().StringVarP(&payload, "payload", "p", "", "Scanned invite payload, id=...&key=... (required)")
	_ = redeemCmd.MarkFlagRequired("payload")
	invitesCmd.AddCommand(redeemCmd)

	rootCmd.AddCommand(invitesCmd)
}
