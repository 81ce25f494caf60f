package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nfrund/huddle/internal/server"
)

var topicsFormat string

// topicsCmd represents the topics command
var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the events published on the internal bus",
	Long: `List every event topic the server publishes.

Output formats:
  table - Human-readable table format (default)
  json  - Machine-readable JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics := server.Topics()
		out := cmd.OutOrStdout()

		switch topicsFormat {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(topics)
		case "table":
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMODULE\tDESCRIPTION")
			for _, t := range topics {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.Module, t.Description)
			}
			return w.Flush()
		default:
			return fmt.Errorf("unknown format %q, want table or json", topicsFormat)
		}
	},
}

func init() {
	topicsCmd.Flags().StringVarP(&topicsFormat, "format", "f", "table", "Output format (table|json)")
	rootCmd.AddCommand(topicsCmd)
}
