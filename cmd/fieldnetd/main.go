// Command fieldnetd runs the fieldnet relay server: event ingestion, the
// community alert fan-out, the task marketplace, and the compute relay.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "fieldnetd",
	Short:        "Fieldnet relay server",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
