package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:     "nodes",
	Short:   "List nodes seen in the last few minutes",
	GroupID: "node",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := fieldClient.NodesOnline(context.Background())
		if err != nil {
			return fmt.Errorf("listing nodes: %w", err)
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		printNodeListTable(resp.Nodes)
		return nil
	},
}
