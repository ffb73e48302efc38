package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arenvale/fieldnet/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show relay health and a network summary",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		health, err := fieldClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("relay unreachable at %s: %w", serverURL, err)
		}

		if jsonOutput {
			out := map[string]any{"server": serverURL, "status": health}
			if stats, err := fieldClient.WorldStats(ctx, 0); err == nil {
				out["world"] = stats
			}
			if nodes, err := fieldClient.NodesOnline(ctx); err == nil {
				out["nodes_online"] = nodes.Count
			}
			if cs, err := fieldClient.ComputeStats(ctx); err == nil {
				out["compute"] = cs
			}
			printJSON(out)
			return nil
		}

		fmt.Printf("Server: %s (%s)\n", serverURL, ui.RenderOK(health))
		if p := activeProfile(); p.NodeID != "" {
			fmt.Printf("Node:   %s\n", ui.RenderAccent(p.NodeID))
		}

		// Summaries are best effort; the relay being up is the headline.
		if stats, err := fieldClient.WorldStats(ctx, 0); err == nil {
			fmt.Printf("World:  %d events / %d nodes / %d cells in the last %dh\n",
				stats.EventsTotal, stats.NodesSeen, stats.CellsCovered, stats.WindowHours)
		}
		if nodes, err := fieldClient.NodesOnline(ctx); err == nil {
			fmt.Printf("Online: %d vision nodes\n", nodes.Count)
		}
		if cs, err := fieldClient.ComputeStats(ctx); err == nil {
			fmt.Printf("Compute: %d jobs total, %d/%d workers online\n",
				cs.JobsTotal, cs.Nodes.Online, cs.Nodes.Total)
		}
		return nil
	},
}
