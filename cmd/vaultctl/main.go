package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag   string
	tokenFlag string
	rootCmd   = &cobra.Command{
		Use:   "vaultctl",
		Short: "CLI client for the vault service REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Vault service base URL")
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "Session token (from vaultctl login)")

	// login subcommand
	var identityToken string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange an identity token for a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identityToken == "" {
				return fmt.Errorf("--identity-token required")
			}
			data, err := postJSON("/api/auth/login", map[string]string{"token": identityToken})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	loginCmd.Flags().StringVarP(&identityToken, "identity-token", "i", "", "Identity provider token (required)")
	_ = loginCmd.MarkFlagRequired("identity-token")
	rootCmd.AddCommand(loginCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
