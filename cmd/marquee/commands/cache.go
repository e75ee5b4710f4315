package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCmd groups cache maintenance operations.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache maintenance",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cache entries past the retention age",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheOp("prune")
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCacheOp("clear")
	},
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheOp(op string) error {
	client := newClient()
	removed, err := client.CacheMaintenance(context.Background(), op)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(map[string]int{"removed": removed})
	}

	if op == "prune" {
		fmt.Printf("Removed %d expired entries.\n", removed)
	} else {
		fmt.Println("Cache cleared.")
	}
	return nil
}
