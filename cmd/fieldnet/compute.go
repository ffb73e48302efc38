package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arenvale/fieldnet/internal/client"
	"github.com/arenvale/fieldnet/internal/ui"
)

var computeCmd = &cobra.Command{
	Use:     "compute",
	Short:   "Submit and work distributed compute jobs",
	GroupID: "work",
}

var computeRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register this machine as a compute worker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		caps, _ := cmd.Flags().GetStringSlice("caps")
		id, err := fieldClient.RegisterComputeNode(context.Background(), caps)
		if err != nil {
			return fmt.Errorf("registering compute node: %w", err)
		}
		if jsonOutput {
			printJSON(map[string]string{"node_id": id})
			return nil
		}
		fmt.Printf("Compute node ID: %s\n", ui.RenderAccent(id))
		fmt.Println("Pass it to 'fieldnet compute poll --node' to pick up jobs.")
		return nil
	},
}

var computeSubmitCmd = &cobra.Command{
	Use:   "submit <job-type>",
	Short: "Submit a compute job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs, _ := cmd.Flags().GetStringSlice("requires")
		priority, _ := cmd.Flags().GetInt("priority")
		payloadJSON, _ := cmd.Flags().GetString("payload")

		req := &client.CreateComputeJobRequest{
			JobType:      args[0],
			Requirements: reqs,
			Priority:     priority,
		}
		if payloadJSON != "" {
			if !json.Valid([]byte(payloadJSON)) {
				return fmt.Errorf("--payload must be valid JSON")
			}
			req.Payload = json.RawMessage(payloadJSON)
		}

		id, err := fieldClient.CreateComputeJob(context.Background(), req)
		if err != nil {
			return fmt.Errorf("submitting job: %w", err)
		}
		if jsonOutput {
			printJSON(map[string]string{"job_id": id})
			return nil
		}
		fmt.Printf("Job ID: %s\n", ui.RenderAccent(id))
		return nil
	},
}

var computePollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll for the next job matching this node's capabilities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node")
		if nodeID == "" {
			return fmt.Errorf("pass --node with the compute node ID from 'fieldnet compute register'")
		}
		job, err := fieldClient.PollComputeJobs(context.Background(), nodeID)
		if err != nil {
			return fmt.Errorf("polling jobs: %w", err)
		}
		if job == nil {
			if jsonOutput {
				fmt.Println("null")
			} else {
				fmt.Println("no jobs pending")
			}
			return nil
		}
		if jsonOutput {
			printJSON(job)
			return nil
		}
		printJobTable(job)
		return nil
	},
}

var computeClaimCmd = &cobra.Command{
	Use:   "claim <job-id>",
	Short: "Claim a pending job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node")
		if nodeID == "" {
			return fmt.Errorf("pass --node with the compute node ID")
		}
		job, err := fieldClient.ClaimComputeJob(context.Background(), args[0], nodeID)
		if err != nil {
			if client.IsConflict(err) {
				return fmt.Errorf("job %s was claimed by another node first", args[0])
			}
			return fmt.Errorf("claiming job: %w", err)
		}
		if jsonOutput {
			printJSON(job)
			return nil
		}
		printJobTable(job)
		return nil
	},
}

var computeProgressCmd = &cobra.Command{
	Use:   "progress <job-id> <pct>",
	Short: "Report progress on a claimed job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node")
		if nodeID == "" {
			return fmt.Errorf("pass --node with the compute node ID")
		}
		pct, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("progress must be a number 0..100: %w", err)
		}
		job, err := fieldClient.ComputeJobHeartbeat(context.Background(), args[0], nodeID, pct)
		if err != nil {
			return fmt.Errorf("reporting progress: %w", err)
		}
		if jsonOutput {
			printJSON(job)
			return nil
		}
		fmt.Printf("%s %s %.0f%%\n", job.ID, ui.RenderStatus(string(job.Status)), job.ProgressPct)
		return nil
	},
}

var computeCompleteCmd = &cobra.Command{
	Use:   "complete <job-id>",
	Short: "Submit results and complete a claimed job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node")
		if nodeID == "" {
			return fmt.Errorf("pass --node with the compute node ID")
		}
		resultsJSON, _ := cmd.Flags().GetString("results")
		var results json.RawMessage
		if resultsJSON != "" {
			if !json.Valid([]byte(resultsJSON)) {
				return fmt.Errorf("--results must be valid JSON")
			}
			results = json.RawMessage(resultsJSON)
		}
		job, err := fieldClient.ComputeJobResults(context.Background(), args[0], nodeID, results)
		if err != nil {
			return fmt.Errorf("completing job: %w", err)
		}
		if jsonOutput {
			printJSON(job)
			return nil
		}
		printJobTable(job)
		return nil
	},
}

var computeNodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List compute workers seen recently",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := fieldClient.ComputeNodesOnline(context.Background())
		if err != nil {
			return fmt.Errorf("listing compute nodes: %w", err)
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		printComputeNodeListTable(resp.Nodes)
		return nil
	},
}

var computeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts by status and worker liveness",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := fieldClient.ComputeStats(context.Background())
		if err != nil {
			return fmt.Errorf("fetching compute stats: %w", err)
		}
		if jsonOutput {
			printJSON(stats)
			return nil
		}
		printCountMap("Jobs by status:", stats.Jobs)
		fmt.Printf("\n%d jobs total, %d/%d workers online\n",
			stats.JobsTotal, stats.Nodes.Online, stats.Nodes.Total)
		return nil
	},
}

func init() {
	computeRegisterCmd.Flags().StringSlice("caps", nil, "worker capabilities (e.g. gpu,whisper)")
	computeCmd.AddCommand(computeRegisterCmd)

	computeSubmitCmd.Flags().StringSlice("requires", nil, "required worker capabilities")
	computeSubmitCmd.Flags().IntP("priority", "p", 0, "job priority, higher first")
	computeSubmitCmd.Flags().String("payload", "", "job payload as JSON")
	computeCmd.AddCommand(computeSubmitCmd)

	computePollCmd.Flags().String("node", "", "compute node ID")
	computeCmd.AddCommand(computePollCmd)

	computeClaimCmd.Flags().String("node", "", "compute node ID")
	computeCmd.AddCommand(computeClaimCmd)

	computeProgressCmd.Flags().String("node", "", "compute node ID")
	computeCmd.AddCommand(computeProgressCmd)

	computeCompleteCmd.Flags().String("node", "", "compute node ID")
	computeCompleteCmd.Flags().String("results", "", "job results as JSON")
	computeCmd.AddCommand(computeCompleteCmd)

	computeCmd.AddCommand(computeNodesCmd)
	computeCmd.AddCommand(computeStatsCmd)
}
