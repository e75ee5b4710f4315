package commands

import (
	"github.com/spf13/cobra"
)

var (
	// daemonAddr is the base URL of the marqueed HTTP API.
	daemonAddr string

	// outputFormat controls output format (text, json).
	outputFormat string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "marquee",
	Short: "Media catalog browser CLI",
	Long: `Marquee CLI browses the cached media catalog served by marqueed.

Use it to page through the merged movie/TV stream, tune the filter, look up
item details, and manage the local cache.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(
		&daemonAddr, "addr", "http://localhost:8475",
		"Base URL of the marqueed daemon",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	// Add subcommands.
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(moreCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(detailCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(offlineCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}
