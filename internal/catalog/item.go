// Package catalog defines the domain model for the media catalog: item
// identities, list summaries, and detail records shared by the fetching and
// pagination layers.
package catalog

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Category identifies one of the two content kinds merged under the "all"
// view. Categories are totally ordered, movies first, which the merge layer
// relies on for tie-breaking.
type Category uint8

const (
	// CategoryMovie is the movie content kind.
	CategoryMovie Category = iota

	// CategoryTV is the television content kind.
	CategoryTV
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMovie:
		return "movie"
	case CategoryTV:
		return "tv"
	default:
		return fmt.Sprintf("category(%d)", c)
	}
}

// ItemID is the composite identity of a catalog item. Items in different
// categories are always distinct, even with equal numeric IDs.
type ItemID struct {
	// Category is the content kind of the item.
	Category Category

	// ID is the upstream numeric identifier, unique within a category.
	ID int64
}

// Less imposes the total order used for stable tie-breaking: category first,
// numeric ID second.
func (id ItemID) Less(other ItemID) bool {
	if id.Category != other.Category {
		return id.Category < other.Category
	}

	return id.ID < other.ID
}

// String renders the ID in category/number form.
func (id ItemID) String() string {
	return fmt.Sprintf("%s/%d", id.Category, id.ID)
}

// ItemSummary is the immutable list representation of a catalog item. Two
// summaries with the same ID are considered the same item regardless of the
// remaining fields; deduplication is last-write-wins on the ID alone.
type ItemSummary struct {
	// ID is the item identity.
	ID ItemID

	// Title is the display title.
	Title string

	// PosterRef is the upstream poster image path, possibly empty.
	PosterRef string

	// BackdropRef is the upstream backdrop image path, possibly empty.
	BackdropRef string

	// Synopsis is the short plot overview.
	Synopsis string

	// PrimaryDate is the release date (movies) or first air date (TV).
	// Upstream frequently omits it.
	PrimaryDate fn.Option[time.Time]

	// Score is the mean vote score, if any votes exist.
	Score fn.Option[float64]

	// ScoreVotes is the number of votes behind Score.
	ScoreVotes fn.Option[int64]

	// GenreIDs are the upstream genre tags attached to the item.
	GenreIDs []int64

	// Popularity is the upstream popularity metric used as the universal
	// tie-break.
	Popularity fn.Option[float64]
}

// Detail is the full record for a single item, fetched on demand.
type Detail struct {
	// ID is the item identity.
	ID ItemID

	// Title is the display title.
	Title string

	// Tagline is the marketing tagline, often empty.
	Tagline string

	// Synopsis is the full plot overview.
	Synopsis string

	// PosterRef is the upstream poster image path, possibly empty.
	PosterRef string

	// BackdropRef is the upstream backdrop image path, possibly empty.
	BackdropRef string

	// PrimaryDate is the release or first-air date.
	PrimaryDate fn.Option[time.Time]

	// Score is the mean vote score.
	Score fn.Option[float64]

	// ScoreVotes is the vote count behind Score.
	ScoreVotes fn.Option[int64]

	// Popularity is the upstream popularity metric.
	Popularity fn.Option[float64]

	// RuntimeMinutes is the feature runtime or typical episode runtime.
	RuntimeMinutes fn.Option[int64]

	// Genres are resolved genre names.
	Genres []string

	// Homepage is the official site URL, often empty.
	Homepage string

	// Status is the upstream production status string.
	Status string
}

// Genre is one entry of a per-category genre reference list.
type Genre struct {
	// ID is the upstream genre identifier.
	ID int64

	// Name is the display name.
	Name string
}

// Stale wraps a value read from cache together with a staleness marker, so
// callers can surface expired data (offline mode) without hiding that it is
// past its freshness window.
type Stale[T any] struct {
	// Value is the cached value.
	Value T

	// IsStale is true when the value was served past its TTL, which only
	// happens on allow-expired reads.
	IsStale bool
}
