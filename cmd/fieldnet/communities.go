package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arenvale/fieldnet/internal/client"
	"github.com/arenvale/fieldnet/internal/ui"
)

var communityCmd = &cobra.Command{
	Use:     "community",
	Short:   "Create, join, and inspect geofenced communities",
	GroupID: "community",
}

var communityCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a community around a center point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		latFlag, _ := cmd.Flags().GetFloat64("lat")
		lonFlag, _ := cmd.Flags().GetFloat64("lon")
		radius, _ := cmd.Flags().GetFloat64("radius")

		lat, lon, err := profileCoords(latFlag, lonFlag, cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon"))
		if err != nil {
			return err
		}

		c, err := fieldClient.CreateCommunity(context.Background(), &client.CreateCommunityRequest{
			Name:     args[0],
			Lat:      lat,
			Lon:      lon,
			RadiusKm: radius,
		})
		if err != nil {
			return fmt.Errorf("creating community: %w", err)
		}
		if jsonOutput {
			printJSON(c)
			return nil
		}
		printCommunityTable(c)
		fmt.Println()
		fmt.Printf("Share the invite code %s to let neighbors join.\n", ui.RenderAccent(c.InviteCode))
		return nil
	},
}

var communityJoinCmd = &cobra.Command{
	Use:   "join <invite-code>",
	Short: "Join a community by invite code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := fieldClient.JoinCommunity(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("joining community: %w", err)
		}
		if jsonOutput {
			printJSON(map[string]string{"community_id": id})
			return nil
		}
		fmt.Printf("Joined %s\n", ui.RenderAccent(id))
		return nil
	},
}

var communityLeaveCmd = &cobra.Command{
	Use:   "leave <community-id>",
	Short: "Leave a community",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fieldClient.LeaveCommunity(context.Background(), args[0]); err != nil {
			return fmt.Errorf("leaving community: %w", err)
		}
		if !jsonOutput {
			fmt.Println("left")
		}
		return nil
	},
}

var communityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List communities this node belongs to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		communities, err := fieldClient.MyCommunities(context.Background())
		if err != nil {
			return fmt.Errorf("listing communities: %w", err)
		}
		if jsonOutput {
			printJSON(communities)
			return nil
		}
		printCommunityListTable(communities)
		return nil
	},
}

var communityShowCmd = &cobra.Command{
	Use:   "show <community-id>",
	Short: "Show a community's fence and membership",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := fieldClient.GetCommunity(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetching community: %w", err)
		}
		if jsonOutput {
			printJSON(c)
			return nil
		}
		printCommunityTable(c)
		return nil
	},
}

var alertCmd = &cobra.Command{
	Use:     "alert",
	Short:   "Broadcast and review community alerts",
	GroupID: "community",
}

var alertSendCmd = &cobra.Command{
	Use:   "send <community-id> <message>",
	Short: "Broadcast an alert to a community",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		alertType, _ := cmd.Flags().GetString("type")
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")

		req := &client.BroadcastAlertRequest{
			Message:   args[1],
			AlertType: alertType,
		}
		if cmd.Flags().Changed("lat") {
			req.Lat = &lat
		}
		if cmd.Flags().Changed("lon") {
			req.Lon = &lon
		}

		ack, err := fieldClient.BroadcastAlert(context.Background(), args[0], req)
		if err != nil {
			return fmt.Errorf("broadcasting alert: %w", err)
		}
		if jsonOutput {
			printJSON(ack)
			return nil
		}
		fmt.Printf("Alert %s sent\n", ui.RenderAccent(ack.EventID))
		return nil
	},
}

var alertListCmd = &cobra.Command{
	Use:   "list <community-id>",
	Short: "List recent alerts for a community",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		alerts, err := fieldClient.ListAlerts(context.Background(), args[0], limit)
		if err != nil {
			return fmt.Errorf("listing alerts: %w", err)
		}
		if jsonOutput {
			printJSON(alerts)
			return nil
		}
		printAlertListTable(alerts)
		return nil
	},
}

func init() {
	communityCreateCmd.Flags().Float64("lat", 0, "center latitude")
	communityCreateCmd.Flags().Float64("lon", 0, "center longitude")
	communityCreateCmd.Flags().Float64("radius", 2.0, "fence radius in km")
	communityCmd.AddCommand(communityCreateCmd)
	communityCmd.AddCommand(communityJoinCmd)
	communityCmd.AddCommand(communityLeaveCmd)
	communityCmd.AddCommand(communityListCmd)
	communityCmd.AddCommand(communityShowCmd)

	alertSendCmd.Flags().StringP("type", "t", "", "alert category (safety, traffic, lost_pet, ...)")
	alertSendCmd.Flags().Float64("lat", 0, "alert latitude (defaults to the community center)")
	alertSendCmd.Flags().Float64("lon", 0, "alert longitude (defaults to the community center)")
	alertListCmd.Flags().IntP("limit", "n", 20, "maximum alerts to return")
	alertCmd.AddCommand(alertSendCmd)
	alertCmd.AddCommand(alertListCmd)
}
