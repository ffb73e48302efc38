// Command fieldnet is the CLI client for the fieldnet relay: register a
// node, report events, run tasks and compute jobs, and watch community
// alerts live.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/arenvale/fieldnet/internal/client"
	"github.com/arenvale/fieldnet/internal/ui"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool

	fieldClient client.FieldClient
)

func defaultServerURL() string {
	if s := os.Getenv("FIELDNET_SERVER"); s != "" {
		return s
	}
	if p := activeProfile(); p.Server != "" {
		return p.Server
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("FIELDNET_TOKEN"); s != "" {
		return s
	}
	return activeProfile().Token
}

var rootCmd = &cobra.Command{
	Use:   "fieldnet <command>",
	Short: "CLI client for the fieldnet relay",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		fieldClient = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if fieldClient != nil {
			fieldClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "relay server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "node bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "node", Title: "Node:"},
		&cobra.Group{ID: "community", Title: "Communities:"},
		&cobra.Group{ID: "work", Title: "Tasks & Compute:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Node
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(nodesCmd)

	// Communities
	rootCmd.AddCommand(communityCmd)
	rootCmd.AddCommand(alertCmd)
	rootCmd.AddCommand(watchCmd)

	// Tasks & Compute
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(computeCmd)

	// System
	rootCmd.AddCommand(worldCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
