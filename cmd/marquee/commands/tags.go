package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// tagsCmd lists the cross-category tag vocabulary.
var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the genre tag vocabulary",
	Long: `List all genre tags. Tags present in only one category still
apply under the combined view; the other category simply contributes no
results while the tag is active.`,
	RunE: runTags,
}

func runTags(cmd *cobra.Command, args []string) error {
	client := newClient()
	tags, err := client.Tags(context.Background())
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(tags)
	}

	if len(tags) == 0 {
		fmt.Println("No tags available.")
		return nil
	}

	fmt.Printf("Tags (%d):\n\n", len(tags))
	for _, tag := range tags {
		scope := "movies+tv"
		switch {
		case tag.MovieID == nil:
			scope = "tv only"
		case tag.TVID == nil:
			scope = "movies only"
		}
		fmt.Printf("  %-22s %s\n", tag.Name, scope)
	}

	return nil
}
