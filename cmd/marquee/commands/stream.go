package commands

import (
	"context"

	"github.com/spf13/cobra"
)

// streamCmd shows the current stream without changing anything.
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Show the current stream",
	RunE:  runStream,
}

// moreCmd loads more items.
var moreCmd = &cobra.Command{
	Use:   "more",
	Short: "Load more items into the stream",
	RunE:  runMore,
}

// refreshCmd reloads the stream from the first page.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload the stream, keeping items visible until fresh data lands",
	RunE:  runRefresh,
}

// refreshBypass forces the reload past fresh cache entries.
var refreshBypass bool

func init() {
	refreshCmd.Flags().BoolVar(&refreshBypass, "bypass", false,
		"skip cached pages and revalidate against upstream")
}

func runStream(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newClient()

	snap, err := client.Snapshot(ctx)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(snap)
	}

	printSnapshot(snap)
	return nil
}

func runMore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newClient()

	// Report the end of the visible list as the reader position so the
	// coordinator always considers the load worthwhile.
	snap, err := client.Snapshot(ctx)
	if err != nil {
		return err
	}

	snap, err = client.LoadMore(ctx, len(snap.Items)-1)
	if err != nil {
		return err
	}

	snap, err = client.waitSettled(ctx, snap)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(snap)
	}

	printSnapshot(snap)
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newClient()

	snap, err := client.Refresh(ctx, refreshBypass)
	if err != nil {
		return err
	}

	snap, err = client.waitSettled(ctx, snap)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(snap)
	}

	printSnapshot(snap)
	return nil
}
