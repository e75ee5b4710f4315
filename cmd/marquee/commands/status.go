package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd shows the daemon status.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runStatus,
}

// offlineCmd toggles offline mode.
var offlineCmd = &cobra.Command{
	Use:   "offline <on|off>",
	Short: "Toggle offline mode",
	Long: `Toggle offline mode. While offline the daemon serves cached data
only, including entries past their freshness window, and marks the results
as stale.`,
	Args: cobra.ExactArgs(1),
	RunE: runOffline,
}

func printStatus(status Status) {
	mode := "online"
	if status.Offline {
		mode = "offline"
	}
	fmt.Printf("Mode:           %s\n", mode)
	fmt.Printf("Cached entries: %d\n", status.CachedEntries)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := newClient()
	status, err := client.GetStatus(context.Background())
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(status)
	}

	printStatus(status)
	return nil
}

func runOffline(cmd *cobra.Command, args []string) error {
	var offline bool
	switch args[0] {
	case "on":
		offline = true
	case "off":
		offline = false
	default:
		return fmt.Errorf("expected on or off, got %q", args[0])
	}

	client := newClient()
	status, err := client.SetOffline(context.Background(), offline)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(status)
	}

	printStatus(status)
	return nil
}
