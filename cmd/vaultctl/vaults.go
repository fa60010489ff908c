package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	vaultsCmd := &cobra.Command{Use: "vaults", Short: "Vault operations"}

	// create
	var name string
	var lat, lng float64
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Drop a new vault at a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"lat": lat, "lng": lng}
			if name != "" {
				payload["name"] = name
			}
			data, err := postJSON("/api/vaults", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVarP(&name, "name", "n", "", "Vault name (generated when omitted)")
	createCmd.Flags().Float64Var(&lat, "lat", 0, "Latitude (required)")
	createCmd.Flags().Float64Var(&lng, "lng", 0, "Longitude (required)")
	_ = createCmd.MarkFlagRequired("lat")
	_ = createCmd.MarkFlagRequired("lng")
	vaultsCmd.AddCommand(createCmd)

	// list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all vaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := getJSON("/api/vaults")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	vaultsCmd.AddCommand(listCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get VAULT_ID",
		Short: "Get vault by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := getJSON("/api/vaults/" + args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	vaultsCmd.AddCommand(getCmd)

	// delete
	deleteCmd := &cobra.Command{
		Use:   "delete VAULT_ID",
		Short: "Delete a vault (creator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := deleteJSON("/api/vaults/" + args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "deleted")
			return nil
		},
	}
	vaultsCmd.AddCommand(deleteCmd)

	// mine
	var memberID string
	mineCmd := &cobra.Command{
		Use:   "mine",
		Short: "List vaults the member belongs to",
		RunE: func(cmd *cobra.Command, args []string) error {
			if memberID == "" {
				return fmt.Errorf("--member required")
			}
			data, err := getJSON(fmt.Sprintf("/api/members/%s/vaults", memberID))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	mineCmd.Flags().StringVarP(&memberID, "member", "m", "", "Member ID (required)")
	_ = mineCmd.MarkFlagRequired("member")
	vaultsCmd.AddCommand(mineCmd)

	// nearby
	var nLat, nLng float64
	var radius, limit int
	nearbyCmd := &cobra.Command{
		Use:   "nearby",
		Short: "List member vaults near a position",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/vaults/nearby?lat=%v&lng=%v", nLat, nLng)
			if radius > 0 {
				path += fmt.Sprintf("&radius=%d", radius)
			}
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
	nearbyCmd.Flags().Float64Var(&nLat, "lat", 0, "Latitude (required)")
	nearbyCmd.Flags().Float64Var(&nLng, "lng", 0, "Longitude (required)")
	nearbyCmd.Flags().IntVar(&radius, "radius", 0, "Radius in meters (service default when omitted)")
	nearbyCmd.Flags().IntVar(&limit, "limit", 0, "Max results (service default when omitted)")
	_ = nearbyCmd.MarkFlagRequired("lat")
	_ = nearbyCmd.MarkFlagRequired("lng")
	vaultsCmd.AddCommand(nearbyCmd)

	// members
	membersCmd := &cobra.Command{
		Use:   "members VAULT_ID",
		Short: "List a vault's members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := getJSON(fmt.Sprintf("/api/vaults/%s/members", args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	vaultsCmd.AddCommand(membersCmd)

	rootCmd.AddCommand(vaultsCmd)
}
