package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	membersCmd := &cobra.Command{Use: "members", Short: "Member operations"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all members",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := getJSON("/api/members")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	membersCmd.AddCommand(listCmd)

	rootCmd.AddCommand(membersCmd)
}
