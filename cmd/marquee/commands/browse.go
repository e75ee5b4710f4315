package commands

import (
	"context"
	"fmt"

	"github.com/roasbeef/marquee/internal/web"
	"github.com/spf13/cobra"
)

var (
	browseCategory string
	browseSort     string
	browseWindow   string
	browseTag      string
	browseCert     string
)

// browseCmd applies a filter and shows the resulting stream.
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Apply a filter and show the stream",
	Long: `Apply a browse filter and wait for the resulting stream.

Tags are given by display name and resolved against the daemon's tag
vocabulary. A trending sort combined with any active filter degrades to
popularity order.`,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().StringVar(&browseCategory, "category", "all",
		"Category: all, movies, tv")
	browseCmd.Flags().StringVar(&browseSort, "sort", "trending",
		"Sort: trending, popularity, date_desc, date_asc, "+
			"score_desc, score_asc")
	browseCmd.Flags().StringVar(&browseWindow, "window", "all_time",
		"Date window: all_time, upcoming, this_month, last_30, "+
			"last_90, this_year")
	browseCmd.Flags().StringVar(&browseTag, "tag", "",
		"Genre tag by display name")
	browseCmd.Flags().StringVar(&browseCert, "cert", "",
		"Certification filter (movies only)")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newClient()

	filter := web.APIFilter{
		Category: browseCategory,
		Sort:     browseSort,
		Window:   browseWindow,
	}
	if browseCert != "" {
		filter.Cert = &browseCert
	}

	if browseTag != "" {
		tag, err := resolveTag(ctx, client, browseTag)
		if err != nil {
			return err
		}
		filter.Tag = &tag
	}

	snap, err := client.SetFilter(ctx, filter)
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

// resolveTag looks up a tag by display name in the daemon's vocabulary.
func resolveTag(ctx context.Context, client *Client,
	name string) (web.APITag, error) {

	tags, err := client.Tags(ctx)
	if err != nil {
		return web.APITag{}, fmt.Errorf("failed to list tags: %w", err)
	}

	for _, tag := range tags {
		if tag.Name == name {
			return tag, nil
		}
	}

	return web.APITag{}, fmt.Errorf("unknown tag %q; run 'marquee tags' "+
		"to list the vocabulary", name)
}
