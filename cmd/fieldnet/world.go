package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arenvale/fieldnet/internal/client"
)

var worldCmd = &cobra.Command{
	Use:     "world",
	Short:   "Browse the anonymized public activity map",
	GroupID: "system",
}

var worldEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent events from the public feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, _ := cmd.Flags().GetInt("hours")
		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		resp, err := fieldClient.WorldEvents(context.Background(), &client.WorldEventsRequest{
			Hours: hours,
			Kind:  kind,
			Limit: limit,
		})
		if err != nil {
			return fmt.Errorf("fetching events: %w", err)
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		printWorldEventListTable(resp.Events)
		return nil
	},
}

var worldCellsCmd = &cobra.Command{
	Use:   "cells",
	Short: "Show per-cell activity counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, _ := cmd.Flags().GetInt("res")
		hours, _ := cmd.Flags().GetInt("hours")

		resp, err := fieldClient.WorldCells(context.Background(), res, hours)
		if err != nil {
			return fmt.Errorf("fetching cells: %w", err)
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		printCountMap(fmt.Sprintf("Activity by cell (res %d, last %dh):", resp.Res, resp.WindowHours), resp.Cells)
		fmt.Printf("\n%d cells active\n", len(resp.Cells))
		return nil
	},
}

var worldStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recent network activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, _ := cmd.Flags().GetInt("hours")

		stats, err := fieldClient.WorldStats(context.Background(), hours)
		if err != nil {
			return fmt.Errorf("fetching stats: %w", err)
		}
		if jsonOutput {
			printJSON(stats)
			return nil
		}
		fmt.Printf("Window:        last %dh\n", stats.WindowHours)
		fmt.Printf("Events:        %d\n", stats.EventsTotal)
		fmt.Printf("Nodes seen:    %d\n", stats.NodesSeen)
		fmt.Printf("Cells covered: %d\n", stats.CellsCovered)
		fmt.Println()
		printCountMap("By kind:", stats.ByKind)
		printCountMap("By detection:", stats.ByEventType)
		return nil
	},
}

var worldCoverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show where cameras have been watching",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, _ := cmd.Flags().GetInt("res")
		hours, _ := cmd.Flags().GetInt("hours")

		resp, err := fieldClient.VisionCoverage(context.Background(), res, hours)
		if err != nil {
			return fmt.Errorf("fetching coverage: %w", err)
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		fmt.Printf("Coverage: %d cells, %d events (res %d, last %dh)\n",
			resp.CellsCovered, resp.EventsTotal, resp.Res, resp.WindowHours)
		return nil
	},
}

func init() {
	worldEventsCmd.Flags().Int("hours", 0, "window in hours (server default 24)")
	worldEventsCmd.Flags().String("kind", "", "filter by event kind (frame, alert, task, system)")
	worldEventsCmd.Flags().IntP("limit", "n", 0, "maximum events to return")
	worldCmd.AddCommand(worldEventsCmd)

	worldCellsCmd.Flags().Int("res", 0, "H3 resolution (server default)")
	worldCellsCmd.Flags().Int("hours", 0, "window in hours (server default 24)")
	worldCmd.AddCommand(worldCellsCmd)

	worldStatsCmd.Flags().Int("hours", 0, "window in hours (server default 24)")
	worldCmd.AddCommand(worldStatsCmd)

	worldCoverageCmd.Flags().Int("res", 0, "H3 resolution (server default)")
	worldCoverageCmd.Flags().Int("hours", 0, "window in hours (server default 24)")
	worldCmd.AddCommand(worldCoverageCmd)
}
