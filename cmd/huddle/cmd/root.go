package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Multi-room presence and messaging server",
	Long: `Huddle coordinates users, rooms and live connections, and routes
messages to every connected member of a room.

Available commands:
  serve     Start the HTTP and websocket server
  topics    List the events published on the internal bus
  version   Print the version

Configuration is read from HUDDLE_* environment variables and an optional .env file.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
