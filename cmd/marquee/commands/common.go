package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/roasbeef/marquee/internal/web"
)

// outputJSON prints a value as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describeFilter renders a filter in one compact line.
func describeFilter(f web.APIFilter) string {
	parts := []string{f.Category, f.Sort}
	if f.Window != "all_time" {
		parts = append(parts, "window="+f.Window)
	}
	if f.Tag != nil {
		parts = append(parts, "tag="+f.Tag.Name)
	}
	if f.Cert != nil {
		parts = append(parts, "cert="+*f.Cert)
	}
	return strings.Join(parts, " ")
}

// printSnapshot renders the stream view as a numbered list.
func printSnapshot(snap web.APISnapshot) {
	fmt.Printf("Stream [%s] %s\n", snap.State,
		describeFilter(snap.Filter))
	if snap.Stale {
		fmt.Println("(showing cached data; upstream unreachable)")
	}

	if len(snap.Items) == 0 {
		fmt.Println("\nNo items.")
		return
	}

	fmt.Println()
	for i, item := range snap.Items {
		date := "----"
		if item.PrimaryDate != nil {
			date = *item.PrimaryDate
		}

		score := "  - "
		if item.Score != nil {
			score = fmt.Sprintf("%4.1f", *item.Score)
		}

		fmt.Printf("%3d. [%-5s] %-42s %s  %s\n",
			i+1, item.Category, truncate(item.Title, 42),
			date, score)
	}
}

// truncate shortens a string to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

// printDetail renders a full item record.
func printDetail(d web.APIDetail) {
	fmt.Printf("%s (%s/%d)\n", d.Title, d.Category, d.ID)
	if d.Tagline != "" {
		fmt.Printf("  %q\n", d.Tagline)
	}
	if d.Stale {
		fmt.Println("  (cached data; upstream unreachable)")
	}

	if d.PrimaryDate != nil {
		fmt.Printf("  Date:       %s\n", *d.PrimaryDate)
	}
	if d.Score != nil {
		votes := int64(0)
		if d.ScoreVotes != nil {
			votes = *d.ScoreVotes
		}
		fmt.Printf("  Score:      %.1f (%d votes)\n", *d.Score, votes)
	}
	if d.RuntimeMinutes != nil {
		fmt.Printf("  Runtime:    %d min\n", *d.RuntimeMinutes)
	}
	if len(d.Genres) > 0 {
		fmt.Printf("  Genres:     %s\n", strings.Join(d.Genres, ", "))
	}
	if d.Status != "" {
		fmt.Printf("  Status:     %s\n", d.Status)
	}
	if d.Homepage != "" {
		fmt.Printf("  Homepage:   %s\n", d.Homepage)
	}

	if d.Synopsis != "" {
		fmt.Printf("\n%s\n", d.Synopsis)
	}
}
