// Package filter defines the immutable browse configuration (category, sort,
// tag, date window, certification) and the invariant engine that keeps its
// cross-field business rules satisfied after every mutation.
package filter

import (
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/catalog"
)

// CategoryFilter selects which content kinds a browse session covers.
type CategoryFilter uint8

const (
	// CategoryAll merges movies and TV into one stream.
	CategoryAll CategoryFilter = iota

	// CategoryMovies restricts the stream to movies.
	CategoryMovies

	// CategoryTV restricts the stream to television.
	CategoryTV
)

// String returns the filter name.
func (c CategoryFilter) String() string {
	switch c {
	case CategoryAll:
		return "all"
	case CategoryMovies:
		return "movies"
	case CategoryTV:
		return "tv"
	default:
		return fmt.Sprintf("category_filter(%d)", c)
	}
}

// SortMode selects the ordering of the visible stream.
type SortMode uint8

const (
	// SortTrending orders by the upstream trending rank. Only available
	// without active filters; the invariant engine downgrades it to
	// SortPopularity otherwise.
	SortTrending SortMode = iota

	// SortPopularity orders by popularity, descending.
	SortPopularity

	// SortDateDesc orders by primary date, newest first.
	SortDateDesc

	// SortDateAsc orders by primary date, oldest first.
	SortDateAsc

	// SortScoreDesc orders by vote score, highest first.
	SortScoreDesc

	// SortScoreAsc orders by vote score, lowest first.
	SortScoreAsc
)

// String returns the sort mode name.
func (s SortMode) String() string {
	switch s {
	case SortTrending:
		return "trending"
	case SortPopularity:
		return "popularity"
	case SortDateDesc:
		return "date_desc"
	case SortDateAsc:
		return "date_asc"
	case SortScoreDesc:
		return "score_desc"
	case SortScoreAsc:
		return "score_asc"
	default:
		return fmt.Sprintf("sort_mode(%d)", s)
	}
}

// Ascending reports whether the mode sorts its primary key ascending, which
// flips the null-field placement policy.
func (s SortMode) Ascending() bool {
	return s == SortDateAsc || s == SortScoreAsc
}

// DateWindow restricts results to a rolling or calendar date range.
type DateWindow uint8

const (
	// WindowAllTime applies no date restriction.
	WindowAllTime DateWindow = iota

	// WindowUpcoming covers future dates only.
	WindowUpcoming

	// WindowThisMonth covers the current calendar month.
	WindowThisMonth

	// WindowLast30 covers the trailing 30 days.
	WindowLast30

	// WindowLast90 covers the trailing 90 days.
	WindowLast90

	// WindowThisYear covers the current calendar year.
	WindowThisYear
)

// String returns the window name.
func (w DateWindow) String() string {
	switch w {
	case WindowAllTime:
		return "all_time"
	case WindowUpcoming:
		return "upcoming"
	case WindowThisMonth:
		return "this_month"
	case WindowLast30:
		return "last_30"
	case WindowLast90:
		return "last_90"
	case WindowThisYear:
		return "this_year"
	default:
		return fmt.Sprintf("date_window(%d)", w)
	}
}

// CrossTag is a genre tag spanning both categories. A tag may exist in only
// one category's genre list, in which case the other category contributes no
// results while the tag is active.
type CrossTag struct {
	// Name is the display name of the tag.
	Name string

	// MovieID is the movie genre ID, if the tag applies to movies.
	MovieID fn.Option[int64]

	// TVID is the TV genre ID, if the tag applies to television.
	TVID fn.Option[int64]
}

// AppliesTo reports whether the tag has a genre ID in the given category.
func (t CrossTag) AppliesTo(cat catalog.Category) bool {
	switch cat {
	case catalog.CategoryMovie:
		return t.MovieID.IsSome()
	case catalog.CategoryTV:
		return t.TVID.IsSome()
	default:
		return false
	}
}

// Config is an immutable browse configuration. It is only ever transformed
// through the With* methods, each of which returns a new value with the
// invariant rules re-applied. Config is comparable; mutations that change
// nothing return a value equal to the receiver so downstream layers can skip
// spurious reloads.
type Config struct {
	// Category selects the content kinds.
	Category CategoryFilter

	// Sort selects the stream ordering.
	Sort SortMode

	// Tag is the optional cross-category genre tag.
	Tag fn.Option[CrossTag]

	// Window is the date restriction.
	Window DateWindow

	// Cert is the optional certification filter. Valid only while
	// Category is CategoryMovies.
	Cert fn.Option[string]
}

// Default returns the initial configuration: everything, trending order.
func Default() Config {
	return Config{
		Category: CategoryAll,
		Sort:     SortTrending,
		Tag:      fn.None[CrossTag](),
		Window:   WindowAllTime,
		Cert:     fn.None[string](),
	}
}

// HasActiveFilters reports whether any narrowing filter is set. Trending
// order is incompatible with active filters.
func (c Config) HasActiveFilters() bool {
	return c.Tag.IsSome() || c.Cert.IsSome() || c.Window != WindowAllTime
}

// normalize re-applies the two invariant rules, in order:
//
//  1. Trending order cannot be combined with active filters; it degrades to
//     popularity.
//  2. The upcoming window cannot be ordered by trending or popularity (the
//     metrics are meaningless for unreleased content); it degrades to newest
//     first.
//
// Rule 2 runs second so it can override rule 1's output.
func (c Config) normalize() Config {
	if c.Sort == SortTrending && c.HasActiveFilters() {
		c.Sort = SortPopularity
	}

	if c.Window == WindowUpcoming &&
		(c.Sort == SortTrending || c.Sort == SortPopularity) {

		c.Sort = SortDateDesc
	}

	return c
}

// WithCategory returns the config with the category replaced. Leaving the
// movies category drops any certification filter, which is movie-only.
func (c Config) WithCategory(cat CategoryFilter) Config {
	c.Category = cat
	if cat != CategoryMovies {
		c.Cert = fn.None[string]()
	}

	return c.normalize()
}

// WithSort returns the config with the sort mode replaced.
func (c Config) WithSort(sort SortMode) Config {
	c.Sort = sort
	return c.normalize()
}

// WithTag returns the config with the tag filter replaced.
func (c Config) WithTag(tag fn.Option[CrossTag]) Config {
	c.Tag = tag
	return c.normalize()
}

// WithWindow returns the config with the date window replaced.
func (c Config) WithWindow(window DateWindow) Config {
	c.Window = window
	return c.normalize()
}

// WithCert returns the config with the certification filter replaced. Outside
// the movies category this is a no-op.
func (c Config) WithCert(cert fn.Option[string]) Config {
	if c.Category != CategoryMovies {
		return c
	}

	c.Cert = cert

	return c.normalize()
}

// Cleared returns the config with all narrowing filters removed, keeping the
// category and sort mode.
func (c Config) Cleared() Config {
	c.Tag = fn.None[CrossTag]()
	c.Cert = fn.None[string]()
	c.Window = WindowAllTime

	return c.normalize()
}

// Categories expands the category filter into the concrete catalog
// categories it covers, in merge order.
func (c Config) Categories() []catalog.Category {
	switch c.Category {
	case CategoryMovies:
		return []catalog.Category{catalog.CategoryMovie}
	case CategoryTV:
		return []catalog.Category{catalog.CategoryTV}
	default:
		return []catalog.Category{
			catalog.CategoryMovie, catalog.CategoryTV,
		}
	}
}

// String renders a compact description for log lines.
func (c Config) String() string {
	tag := "-"
	c.Tag.WhenSome(func(t CrossTag) { tag = t.Name })

	cert := "-"
	c.Cert.WhenSome(func(s string) { cert = s })

	return fmt.Sprintf("%s/%s tag=%s window=%s cert=%s",
		c.Category, c.Sort, tag, c.Window, cert)
}
