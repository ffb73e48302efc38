package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arenvale/fieldnet/internal/client"
)

var heartbeatCmd = &cobra.Command{
	Use:     "heartbeat",
	Short:   "Send a liveness heartbeat for this node",
	GroupID: "node",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.HeartbeatRequest{}

		if cmd.Flags().Changed("battery") {
			v, _ := cmd.Flags().GetFloat64("battery")
			req.Battery = &v
		}
		if cmd.Flags().Changed("wifi") {
			v, _ := cmd.Flags().GetFloat64("wifi")
			req.WiFi = &v
		}
		if cmd.Flags().Changed("frames") {
			v, _ := cmd.Flags().GetInt64("frames")
			req.FramesSent = &v
		}
		if cmd.Flags().Changed("events") {
			v, _ := cmd.Flags().GetInt64("events")
			req.EventsDetected = &v
		}
		if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
			lat, _ := cmd.Flags().GetFloat64("lat")
			lon, _ := cmd.Flags().GetFloat64("lon")
			req.Lat = &lat
			req.Lon = &lon
		} else if p := activeProfile(); p.Lat != nil && p.Lon != nil {
			req.Lat = p.Lat
			req.Lon = p.Lon
		}

		if err := fieldClient.Heartbeat(context.Background(), req); err != nil {
			return fmt.Errorf("sending heartbeat: %w", err)
		}
		if !jsonOutput {
			fmt.Println("ok")
		}
		return nil
	},
}

func init() {
	heartbeatCmd.Flags().Float64("battery", 0, "battery level 0..1")
	heartbeatCmd.Flags().Float64("wifi", 0, "wifi signal strength 0..1")
	heartbeatCmd.Flags().Int64("frames", 0, "total frames sent so far")
	heartbeatCmd.Flags().Int64("events", 0, "total events detected so far")
	heartbeatCmd.Flags().Float64("lat", 0, "current latitude")
	heartbeatCmd.Flags().Float64("lon", 0, "current longitude")
}
