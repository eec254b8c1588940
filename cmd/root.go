// Package cmd defines the halcyon command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "halcyon",
	Short: "Halcyon - companion chat service",
	Long: `Halcyon serves persona-driven conversations over HTTP.

Each companion is a configured persona with its own conversational memory
and archival backstory. Run "halcyon serve" to start the API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
