package stream

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/roasbeef/marquee/internal/filter"
)

// The merge order must be total and deterministic: two runs over the same
// pages always interleave identically. Ties on the sort key fall through
// popularity (descending), then category, then numeric ID, so no pair of
// distinct items ever compares equal.
//
// Missing values sort as smallest. On a descending sort that places them
// last; on an ascending sort, first.

// compareFloat orders optional floats ascending with None smallest.
func compareFloat(a, b fn.Option[float64]) int {
	av, aOK := a.UnwrapOr(0), a.IsSome()
	bv, bOK := b.UnwrapOr(0), b.IsSome()

	switch {
	case !aOK && !bOK:
		return 0
	case !aOK:
		return -1
	case !bOK:
		return 1
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

// compareDate orders optional dates ascending with None smallest.
func compareDate(a, b fn.Option[time.Time]) int {
	av, aOK := a.UnwrapOr(time.Time{}), a.IsSome()
	bv, bOK := b.UnwrapOr(time.Time{}), b.IsSome()

	switch {
	case !aOK && !bOK:
		return 0
	case !aOK:
		return -1
	case !bOK:
		return 1
	default:
		return av.Compare(bv)
	}
}

// primaryCompare orders two items by the sort key alone, returning 0 on a
// tie. Trending has no item-borne sort key; its order is the upstream rank
// within a single feed, so the primary comparison is vacuous and ties fall
// straight to popularity.
func primaryCompare(sort filter.SortMode,
	a, b catalog.ItemSummary) int {

	switch sort {
	case filter.SortPopularity:
		return -compareFloat(a.Popularity, b.Popularity)
	case filter.SortDateDesc:
		return -compareDate(a.PrimaryDate, b.PrimaryDate)
	case filter.SortDateAsc:
		return compareDate(a.PrimaryDate, b.PrimaryDate)
	case filter.SortScoreDesc:
		return -compareFloat(a.Score, b.Score)
	case filter.SortScoreAsc:
		return compareFloat(a.Score, b.Score)
	default:
		return 0
	}
}

// Less reports whether a orders before b in the merged stream under the
// given sort mode.
func Less(sort filter.SortMode, a, b catalog.ItemSummary) bool {
	if c := primaryCompare(sort, a, b); c != 0 {
		return c < 0
	}

	if c := compareFloat(a.Popularity, b.Popularity); c != 0 {
		return c > 0
	}

	if a.ID.Category != b.ID.Category {
		return a.ID.Category < b.ID.Category
	}

	return a.ID.ID < b.ID.ID
}
