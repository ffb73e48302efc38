package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arenvale/fieldnet/internal/client"
	"github.com/arenvale/fieldnet/internal/ui"
)

var registerCmd = &cobra.Command{
	Use:     "register",
	Short:   "Register this node and save its identity to the profile",
	GroupID: "node",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		caps, _ := cmd.Flags().GetStringSlice("caps")
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		secret, _ := cmd.Flags().GetString("secret")

		if secret != "" {
			if hc, ok := fieldClient.(*client.HTTPClient); ok {
				hc.SetRegistrationSecret(secret)
			}
		}

		req := &client.RegisterNodeRequest{
			Name:         name,
			Capabilities: caps,
		}
		if cmd.Flags().Changed("lat") {
			req.Lat = &lat
		}
		if cmd.Flags().Changed("lon") {
			req.Lon = &lon
		}

		resp, err := fieldClient.RegisterNode(context.Background(), req)
		if err != nil {
			return fmt.Errorf("registering node: %w", err)
		}

		p, err := loadProfile()
		if err != nil {
			return err
		}
		p.Server = serverURL
		p.NodeID = resp.NodeID
		p.Token = resp.Token
		if req.Lat != nil && req.Lon != nil {
			p.Lat = req.Lat
			p.Lon = req.Lon
		}
		if err := saveProfile(p); err != nil {
			return fmt.Errorf("saving profile: %w", err)
		}

		if jsonOutput {
			printJSON(resp)
			return nil
		}
		fmt.Printf("Node ID: %s\n", ui.RenderAccent(resp.NodeID))
		fmt.Printf("Token:   %s\n", resp.Token)
		fmt.Println(ui.RenderWarn("The token is shown only once. It has been saved to your profile."))
		return nil
	},
}

func init() {
	registerCmd.Flags().String("name", "", "human-readable node name")
	registerCmd.Flags().StringSlice("caps", nil, "node capabilities (repeatable, e.g. camera,gps)")
	registerCmd.Flags().Float64("lat", 0, "node latitude")
	registerCmd.Flags().Float64("lon", 0, "node longitude")
	registerCmd.Flags().String("secret", "", "registration secret (required when the server gates registration)")
}
