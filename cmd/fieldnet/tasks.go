package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/arenvale/fieldnet/internal/client"
	"github.com/arenvale/fieldnet/internal/ui"
)

// taskNodeID resolves the node identity for claim and progress calls:
// the --node flag wins, then the saved profile.
func taskNodeID(cmd *cobra.Command) (string, error) {
	if id, _ := cmd.Flags().GetString("node"); id != "" {
		return id, nil
	}
	if p := activeProfile(); p.NodeID != "" {
		return p.NodeID, nil
	}
	return "", fmt.Errorf("no node identity: register first or pass --node")
}

var taskCmd = &cobra.Command{
	Use:     "task",
	Short:   "Publish and work location-scoped tasks",
	GroupID: "work",
}

var taskDistributeCmd = &cobra.Command{
	Use:   "distribute <type>",
	Short: "Publish a task for nearby nodes to claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		latFlag, _ := cmd.Flags().GetFloat64("lat")
		lonFlag, _ := cmd.Flags().GetFloat64("lon")
		radius, _ := cmd.Flags().GetFloat64("radius")
		reward, _ := cmd.Flags().GetFloat64("reward")
		reqsJSON, _ := cmd.Flags().GetString("requirements")
		expiresIn, _ := cmd.Flags().GetDuration("expires-in")

		lat, lon, err := profileCoords(latFlag, lonFlag, cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon"))
		if err != nil {
			return err
		}

		req := &client.DistributeTaskRequest{
			Type:   args[0],
			Lat:    lat,
			Lon:    lon,
			Reward: reward,
		}
		if cmd.Flags().Changed("radius") {
			req.RadiusKm = &radius
		}
		if reqsJSON != "" {
			if !json.Valid([]byte(reqsJSON)) {
				return fmt.Errorf("--requirements must be valid JSON")
			}
			req.Requirements = json.RawMessage(reqsJSON)
		}
		if expiresIn > 0 {
			t := time.Now().Add(expiresIn)
			req.ExpiresAt = &t
		}

		ack, err := fieldClient.DistributeTask(context.Background(), req)
		if err != nil {
			return fmt.Errorf("distributing task: %w", err)
		}
		if jsonOutput {
			printJSON(ack)
			return nil
		}
		fmt.Printf("Task ID: %s\n", ui.RenderAccent(ack.TaskID))
		fmt.Printf("Cell:    %s\n", ack.Cell)
		return nil
	},
}

var taskAvailableCmd = &cobra.Command{
	Use:   "available",
	Short: "List open tasks near a position, nearest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		latFlag, _ := cmd.Flags().GetFloat64("lat")
		lonFlag, _ := cmd.Flags().GetFloat64("lon")
		radius, _ := cmd.Flags().GetFloat64("radius")

		lat, lon, err := profileCoords(latFlag, lonFlag, cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon"))
		if err != nil {
			return err
		}

		resp, err := fieldClient.AvailableTasks(context.Background(), lat, lon, radius)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		printTaskListTable(resp.Tasks)
		return nil
	},
}

var taskClaimCmd = &cobra.Command{
	Use:   "claim <task-id>",
	Short: "Claim an open task for this node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, err := taskNodeID(cmd)
		if err != nil {
			return err
		}
		task, err := fieldClient.ClaimTask(context.Background(), args[0], nodeID)
		if err != nil {
			if client.IsConflict(err) {
				return fmt.Errorf("task %s was claimed by another node first", args[0])
			}
			return fmt.Errorf("claiming task: %w", err)
		}
		if jsonOutput {
			printJSON(task)
			return nil
		}
		printTaskTable(task)
		return nil
	},
}

var taskProgressCmd = &cobra.Command{
	Use:   "progress <task-id> <pct>",
	Short: "Report progress on a claimed task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, err := taskNodeID(cmd)
		if err != nil {
			return err
		}
		pct, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("progress must be a number 0..100: %w", err)
		}
		task, err := fieldClient.TaskHeartbeat(context.Background(), args[0], nodeID, pct)
		if err != nil {
			return fmt.Errorf("reporting progress: %w", err)
		}
		if jsonOutput {
			printJSON(task)
			return nil
		}
		fmt.Printf("%s %s %.0f%%\n", task.ID, ui.RenderStatus(string(task.Status)), task.ProgressPct)
		return nil
	},
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Submit results and complete a claimed task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, err := taskNodeID(cmd)
		if err != nil {
			return err
		}
		resultsJSON, _ := cmd.Flags().GetString("results")
		var results json.RawMessage
		if resultsJSON != "" {
			if !json.Valid([]byte(resultsJSON)) {
				return fmt.Errorf("--results must be valid JSON")
			}
			results = json.RawMessage(resultsJSON)
		}
		task, err := fieldClient.TaskResults(context.Background(), args[0], nodeID, results)
		if err != nil {
			return fmt.Errorf("completing task: %w", err)
		}
		if jsonOutput {
			printJSON(task)
			return nil
		}
		printTaskTable(task)
		return nil
	},
}

var taskStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task counts by status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := fieldClient.TaskStats(context.Background())
		if err != nil {
			return fmt.Errorf("fetching task stats: %w", err)
		}
		if jsonOutput {
			printJSON(stats)
			return nil
		}
		printCountMap("Tasks by status:", stats.ByStatus)
		fmt.Printf("\n%d tasks total\n", stats.Total)
		return nil
	},
}

func init() {
	taskDistributeCmd.Flags().Float64("lat", 0, "task latitude")
	taskDistributeCmd.Flags().Float64("lon", 0, "task longitude")
	taskDistributeCmd.Flags().Float64("radius", 0, "how far away nodes may claim from, in km")
	taskDistributeCmd.Flags().Float64("reward", 0, "reward offered for completion")
	taskDistributeCmd.Flags().String("requirements", "", "required capabilities as JSON (e.g. '{\"camera\":true}')")
	taskDistributeCmd.Flags().Duration("expires-in", 0, "how long the task stays open (e.g. 2h)")
	taskCmd.AddCommand(taskDistributeCmd)

	taskAvailableCmd.Flags().Float64("lat", 0, "search latitude")
	taskAvailableCmd.Flags().Float64("lon", 0, "search longitude")
	taskAvailableCmd.Flags().Float64("radius", 10, "search radius in km")
	taskCmd.AddCommand(taskAvailableCmd)

	taskClaimCmd.Flags().String("node", "", "node ID (defaults to the saved profile)")
	taskCmd.AddCommand(taskClaimCmd)

	taskProgressCmd.Flags().String("node", "", "node ID (defaults to the saved profile)")
	taskCmd.AddCommand(taskProgressCmd)

	taskCompleteCmd.Flags().String("node", "", "node ID (defaults to the saved profile)")
	taskCompleteCmd.Flags().String("results", "", "task results as JSON")
	taskCmd.AddCommand(taskCompleteCmd)

	taskCmd.AddCommand(taskStatsCmd)
}
