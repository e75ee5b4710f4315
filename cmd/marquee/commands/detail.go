package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// detailCmd looks up the full record for one item.
var detailCmd = &cobra.Command{
	Use:   "detail <movie|tv> <id>",
	Short: "Show the full record for one item",
	Args:  cobra.ExactArgs(2),
	RunE:  runDetail,
}

// detailBypass forces a refetch past a fresh cache entry.
var detailBypass bool

func init() {
	detailCmd.Flags().BoolVar(&detailBypass, "bypass", false,
		"skip the cached record and refetch from upstream")
}

func runDetail(cmd *cobra.Command, args []string) error {
	category := args[0]
	if category != "movie" && category != "tv" {
		return fmt.Errorf("category must be movie or tv, got %q",
			category)
	}

	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid item ID %q", args[1])
	}

	client := newClient()
	detail, err := client.Detail(
		context.Background(), category, id, detailBypass,
	)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(detail)
	}

	printDetail(detail)
	return nil
}
