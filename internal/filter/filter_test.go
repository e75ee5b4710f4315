package filter

import (
	"testing"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// actionTag is a tag present in both categories.
var actionTag = CrossTag{
	Name:    "Action",
	MovieID: fn.Some[int64](28),
	TVID:    fn.Some[int64](10759),
}

// filmNoirTag only exists for movies.
var filmNoirTag = CrossTag{
	Name:    "Film Noir",
	MovieID: fn.Some[int64](10752),
	TVID:    fn.None[int64](),
}

// TestTrendingDegradesUnderFilters covers rule 1: trending order cannot
// survive an active filter.
func TestTrendingDegradesUnderFilters(t *testing.T) {
	t.Parallel()

	cfg := Default().WithTag(fn.Some(actionTag))
	require.Equal(t, SortPopularity, cfg.Sort)

	cfg = Default().WithWindow(WindowLast30)
	require.Equal(t, SortPopularity, cfg.Sort)

	// Removing the filter does not restore trending; the degradation is
	// one-way by design of the pure mutators.
	cfg = cfg.WithWindow(WindowAllTime)
	require.Equal(t, SortPopularity, cfg.Sort)
}

// TestUpcomingOverridesPopularity covers rule ordering: rule 2 overrides the
// popularity fallback produced by rule 1.
func TestUpcomingOverridesPopularity(t *testing.T) {
	t.Parallel()

	cfg := Default().WithWindow(WindowUpcoming)

	// Rule 1 first degrades trending to popularity, then rule 2 forces
	// newest-first for the upcoming window.
	require.Equal(t, SortDateDesc, cfg.Sort)

	// The same holds when the tag lands on an upcoming window.
	cfg = Default().
		WithWindow(WindowUpcoming).
		WithTag(fn.Some(actionTag))
	require.Equal(t, SortDateDesc, cfg.Sort)
}

// TestCertClearedOnCategoryChange verifies the certification filter cannot
// outlive the movies category.
func TestCertClearedOnCategoryChange(t *testing.T) {
	t.Parallel()

	cfg := Default().
		WithCategory(CategoryMovies).
		WithCert(fn.Some("R"))
	require.True(t, cfg.Cert.IsSome())

	cfg = cfg.WithCategory(CategoryTV)
	require.True(t, cfg.Cert.IsNone())
}

// TestCertIgnoredOutsideMovies verifies WithCert is a no-op for non-movie
// categories, returning an identical value.
func TestCertIgnoredOutsideMovies(t *testing.T) {
	t.Parallel()

	before := Default().WithCategory(CategoryTV)
	after := before.WithCert(fn.Some("R"))

	require.Equal(t, before, after)
	require.True(t, after.Cert.IsNone())
}

// TestClearedKeepsCategoryAndSort verifies Cleared removes narrowing filters
// only.
func TestClearedKeepsCategoryAndSort(t *testing.T) {
	t.Parallel()

	cfg := Default().
		WithCategory(CategoryMovies).
		WithSort(SortScoreDesc).
		WithTag(fn.Some(filmNoirTag)).
		WithWindow(WindowThisYear).
		WithCert(fn.Some("PG-13"))

	cleared := cfg.Cleared()
	require.Equal(t, CategoryMovies, cleared.Category)
	require.Equal(t, SortScoreDesc, cleared.Sort)
	require.True(t, cleared.Tag.IsNone())
	require.True(t, cleared.Cert.IsNone())
	require.Equal(t, WindowAllTime, cleared.Window)
}

// TestUnchangedMutationIsIdentity verifies that re-applying the current value
// yields an equal config, so downstream layers can suppress reloads with a
// plain comparison.
func TestUnchangedMutationIsIdentity(t *testing.T) {
	t.Parallel()

	cfg := Default().
		WithCategory(CategoryMovies).
		WithSort(SortDateAsc)

	require.Equal(t, cfg, cfg.WithCategory(CategoryMovies))
	require.Equal(t, cfg, cfg.WithSort(SortDateAsc))
	require.Equal(t, cfg, cfg.WithWindow(cfg.Window))
	require.Equal(t, cfg, cfg.WithTag(cfg.Tag))
}

// TestTagApplicability verifies CrossTag category coverage.
func TestTagApplicability(t *testing.T) {
	t.Parallel()

	require.True(t, actionTag.AppliesTo(catalog.CategoryMovie))
	require.True(t, actionTag.AppliesTo(catalog.CategoryTV))
	require.True(t, filmNoirTag.AppliesTo(catalog.CategoryMovie))
	require.False(t, filmNoirTag.AppliesTo(catalog.CategoryTV))
}

// genConfig draws an arbitrary (possibly rule-violating) raw config, then
// passes it through a random mutator so the result went through the
// invariant engine at least once.
func genConfig(t *rapid.T) Config {
	cfg := Config{
		Category: CategoryFilter(rapid.IntRange(0, 2).Draw(t, "cat")),
		Sort:     SortMode(rapid.IntRange(0, 5).Draw(t, "sort")),
		Window:   DateWindow(rapid.IntRange(0, 5).Draw(t, "window")),
	}
	if rapid.Bool().Draw(t, "hasTag") {
		cfg.Tag = fn.Some(actionTag)
	}
	if rapid.Bool().Draw(t, "hasCert") {
		cfg.Cert = fn.Some("R")
	}

	// Normalize through a public mutator.
	return cfg.WithSort(cfg.Sort)
}

// TestInvariantEngineIdempotent checks that applying the engine twice never
// changes the result of applying it once.
func TestInvariantEngineIdempotent(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		cfg := genConfig(t)
		again := cfg.WithSort(cfg.Sort)

		if cfg != again {
			t.Fatalf("engine not idempotent: %v -> %v", cfg, again)
		}
	})
}

// TestInvariantsAlwaysHold checks the two business rules and the cert/
// category invariant across arbitrary mutation sequences.
func TestInvariantsAlwaysHold(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		cfg := Default()

		steps := rapid.IntRange(1, 8).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 5).Draw(t, "op") {
			case 0:
				cat := CategoryFilter(
					rapid.IntRange(0, 2).Draw(t, "cat"),
				)
				cfg = cfg.WithCategory(cat)
			case 1:
				sort := SortMode(
					rapid.IntRange(0, 5).Draw(t, "sort"),
				)
				cfg = cfg.WithSort(sort)
			case 2:
				cfg = cfg.WithTag(fn.Some(actionTag))
			case 3:
				win := DateWindow(
					rapid.IntRange(0, 5).Draw(t, "win"),
				)
				cfg = cfg.WithWindow(win)
			case 4:
				cfg = cfg.WithCert(fn.Some("R"))
			case 5:
				cfg = cfg.Cleared()
			}
		}

		if cfg.Sort == SortTrending && cfg.HasActiveFilters() {
			t.Fatalf("trending with active filters: %v", cfg)
		}
		if cfg.Window == WindowUpcoming &&
			(cfg.Sort == SortTrending ||
				cfg.Sort == SortPopularity) {

			t.Fatalf("upcoming with rank sort: %v", cfg)
		}
		if cfg.Cert.IsSome() && cfg.Category != CategoryMovies {
			t.Fatalf("cert outside movies: %v", cfg)
		}
	})
}
