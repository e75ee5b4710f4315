package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/cache"
	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/roasbeef/marquee/internal/fetcher"
	"github.com/roasbeef/marquee/internal/filter"
	"github.com/roasbeef/marquee/internal/upstream"
	"github.com/stretchr/testify/require"
)

// script is a scripted BodyFetcher recording every requested URL.
type script struct {
	mu     sync.Mutex
	urls   []string
	handle func(u *url.URL) ([]byte, error)
}

func (s *script) Fetch(_ context.Context, raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.urls = append(s.urls, raw)
	handle := s.handle
	s.mu.Unlock()

	return handle(u)
}

func (s *script) set(handle func(u *url.URL) ([]byte, error)) {
	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()
}

func (s *script) requested(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.urls {
		if strings.Contains(u, substr) {
			return true
		}
	}

	return false
}

func pageOf(u *url.URL) int {
	p, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil {
		return 1
	}

	return p
}

func item(cat string, id int64, pop float64) string {
	return fmt.Sprintf(
		`{"id": %d, "title": "Item %d", "popularity": %g}`,
		id, id, pop,
	)
}

func listBody(page, total int, items ...string) ([]byte, error) {
	return []byte(fmt.Sprintf(
		`{"page": %d, "total_pages": %d, "total_results": %d,
		  "results": [%s]}`,
		page, total, len(items), strings.Join(items, ","),
	)), nil
}

func failWith(kind upstream.Kind) ([]byte, error) {
	return nil, upstream.NewError(kind, errors.New("scripted failure"))
}

func newTestCoordinator(t *testing.T, sc *script) *Coordinator {
	return newTestCoordinatorDebounce(t, sc, 10*time.Millisecond)
}

func newTestCoordinatorDebounce(t *testing.T, sc *script,
	debounce time.Duration) *Coordinator {

	t.Helper()

	tc, err := cache.New(cache.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	f := fetcher.New(fetcher.Config{
		Routes: upstream.NewRoutes("https://example.test/3", "k"),
		Client: sc,
		Cache:  tc,
	})

	coord := New(Config{Fetcher: f, Debounce: debounce})
	t.Cleanup(coord.Stop)

	return coord
}

// waitForState polls until the stream reaches the named state.
func waitForState(t *testing.T, coord *Coordinator,
	state string) Snapshot {

	t.Helper()

	var snap Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = coord.Snapshot(t.Context())
		require.NoError(t, err)

		return snap.State.String() == state
	}, 5*time.Second, 5*time.Millisecond,
		"never reached state %q", state)

	return snap
}

func ids(snap Snapshot) []int64 {
	out := make([]int64, len(snap.Items))
	for i, it := range snap.Items {
		out[i] = it.ID.ID
	}

	return out
}

func moviesPopularity() filter.Config {
	return filter.Default().
		WithCategory(filter.CategoryMovies).
		WithSort(filter.SortPopularity)
}

// TestTrendingInitialLoad checks the combined trending path: one feed,
// upstream rank preserved, unsupported results dropped.
func TestTrendingInitialLoad(t *testing.T) {
	t.Parallel()

	sc := &script{}
	sc.set(func(u *url.URL) ([]byte, error) {
		if !strings.Contains(u.Path, "/trending/all/day") {
			return failWith(upstream.KindNotFound)
		}

		return listBody(1, 1,
			`{"media_type": "movie", "id": 10,
			  "title": "First", "popularity": 5}`,
			`{"media_type": "person", "id": 99,
			  "name": "Nobody"}`,
			`{"media_type": "tv", "id": 20,
			  "title": "", "name": "Second",
			  "popularity": 50}`,
		)
	})

	coord := newTestCoordinator(t, sc)
	_, err := coord.LoadInitial(t.Context())
	require.NoError(t, err)

	snap := waitForState(t, coord, "exhausted")

	// Rank order, not popularity order: the combined feed is a single
	// sequence and arrives pre-ranked.
	require.Equal(t, []int64{10, 20}, ids(snap))
	require.Equal(t, catalog.CategoryMovie, snap.Items[0].ID.Category)
	require.Equal(t, catalog.CategoryTV, snap.Items[1].ID.Category)
}

// TestFilteredDualCategoryMerge checks the two-feed popularity merge.
func TestFilteredDualCategoryMerge(t *testing.T) {
	t.Parallel()

	sc := &script{}
	sc.set(func(u *url.URL) ([]byte, error) {
		switch {
		case strings.Contains(u.Path, "/discover/movie"):
			return listBody(1, 1,
				item("movie", 1, 90), item("movie", 3, 80),
			)
		case strings.Contains(u.Path, "/discover/tv"):
			return listBody(1, 1, item("tv", 2, 85))
		default:
			return failWith(upstream.KindNotFound)
		}
	})

	coord := newTestCoordinator(t, sc)
	_, err := coord.SetFilter(
		t.Context(), filter.Default().
			WithSort(filter.SortPopularity),
	)
	require.NoError(t, err)

	snap := waitForState(t, coord, "exhausted")
	require.Equal(t, []int64{1, 2, 3}, ids(snap))
}

// TestDedupAcrossPages checks that an item straddling a page boundary
// appears once.
func TestDedupAcrossPages(t *testing.T) {
	t.Parallel()

	sc := &script{}
	sc.set(func(u *url.URL) ([]byte, error) {
		if pageOf(u) == 1 {
			return listBody(1, 2,
				item("movie", 1, 50), item("movie", 2, 40),
				item("movie", 3, 30),
			)
		}

		return listBody(2, 2,
			item("movie", 3, 30), item("movie", 4, 20),
			item("movie", 5, 10),
		)
	})

	coord := newTestCoordinator(t, sc)
	_, err := coord.SetFilter(t.Context(), moviesPopularity())
	require.NoError(t, err)

	snap := waitForState(t, coord, "exhausted")
	require.Equal(t, []int64{1, 2, 3, 4, 5}, ids(snap))
}

// TestNextPageFailureKeepsVisible checks the visible-content policy: a
// rate-limited second page stalls the stream without touching what is
// already on screen, and a later load-more retry heals it.
func TestNextPageFailureKeepsVisible(t *testing.T) {
	t.Parallel()

	page := func(p int) ([]byte, error) {
		items := make([]string, 5)
		for i := range items {
			id := int64((p-1)*5 + i + 1)
			items[i] = item("movie", id, float64(100-id))
		}

		return listBody(p, 3, items...)
	}

	sc := &script{}
	sc.set(func(u *url.URL) ([]byte, error) {
		if pageOf(u) > 1 {
			return failWith(upstream.KindRateLimited)
		}

		return page(1)
	})

	coord := newTestCoordinator(t, sc)
	_, err := coord.SetFilter(t.Context(), moviesPopularity())
	require.NoError(t, err)

	snap := waitForState(t, coord, "loaded_stalled")
	require.Equal(t, []int64{1, 2, 3, 4, 5}, ids(snap))

	// Upstream recovers; scrolling near the end retries.
	sc.set(func(u *url.URL) ([]byte, error) {
		return page(pageOf(u))
	})
	_, err = coord.LoadMoreIfNeeded(t.Context(), len(snap.Items)-1)
	require.NoError(t, err)

	snap = waitForState(t, coord, "exhausted")
	require.Len(t, snap.Items, 15)
	require.Equal(t, int64(1), snap.Items[0].ID.ID)
}

// TestLoadMoreRespectsThreshold checks that scrolling far from the end
// does not trigger a fetch.
func TestLoadMoreRespectsThreshold(t *testing.T) {
	t.Parallel()

	sc := &script{}
	sc.set(func(u *url.URL) ([]byte, error) {
		if pageOf(u) > 1 {
			return failWith(upstream.KindRateLimited)
		}

		items := make([]string, 20)
		for i := range items {
			items[i] = item("movie", int64(i+1),
				float64(100-i))
		}

		return listBody(1, 9, items...)
	})

	coord := newTestCoordinator(t, sc)
	_, err := coord.SetFilter(t.Context(), moviesPopularity())
	require.NoError(t, err)
	snap := waitForState(t, coord, "loaded_stalled")
	require.Len(t, snap.Items, 20)

	// Index 5 of 20 leaves 14 rows below, well over the threshold.
	snap, err = coord.LoadMoreIfNeeded(t.Context(), 5)
	require.NoError(t, err)
	require.Equal(t, "loaded_stalled", snap.State.String())
}

// TestInitialFailureThenRetry checks that a failed first load surfaces as
// a failed state and that a retry recovers.
func TestInitialFailureThenRetry(t *testing.T) {
	t.Parallel()

	sc := &script{}
	sc.set(func(*url.URL) ([]byte, error) {
		return failWith(upstream.KindServerError)
	})

	coord := newTestCoordinator(t, sc)
	_, err := coord.SetFilter(t.Context(), moviesPopularity())
	require.NoError(t, err)
	waitForState(t, coord, "failed")

	sc.set(func(*url.URL) ([]byte, error) {
		return listBody(1, 1, item("movie", 1, 10))
	})
	_, err = coord.LoadInitial(t.Context())
	require.NoError(t, err)

	snap := waitForState(t, coord, "exhausted")
	require.Equal(t, []int64{1}, ids(snap))
}

// TestEmptyByConstruction checks that a tag inapplicable to the selected
// category yields the empty state without an upstream round trip.
func TestEmptyByConstruction(t *testing.T) {
	t.Parallel()

	sc := &script{}
	sc.set(func(*url.URL) ([]byte, error) {
		return failWith(upstream.KindServerError)
	})

	movieOnly := filter.CrossTag{
		Name:    "Film Noir",
		MovieID: fn.Some(int64(9999)),
		TVID:    fn.None[int64](),
	}

	coord := newTestCoordinator(t, sc)
	_, err := coord.SetFilter(t.Context(), filter.Default().
		WithCategory(filter.CategoryTV).
		WithTag(fn.Some(movieOnly)))
	require.NoError(t, err)

	waitForState(t, coord, "empty")
	require.False(t, sc.requested("/discover/"))
}

// TestNextPageTriggerDebounces checks that scrolling near the end arms a
// debounce before the next page is requested and that repeated triggers
// inside the window collapse into one load.
func TestNextPageTriggerDebounces(t *testing.T) {
	t.Parallel()

	page := func(p int) ([]byte, error) {
		items := make([]string, 20)
		for i := range items {
			id := int64((p-1)*20 + i + 1)
			items[i] = item("movie", id, float64(1000-id))
		}

		return listBody(p, 3, items...)
	}

	sc := &script{}
	sc.set(func(u *url.URL) ([]byte, error) {
		return page(pageOf(u))
	})

	tc, err := cache.New(cache.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	f := fetcher.New(fetcher.Config{
		Routes: upstream.NewRoutes("https://example.test/3", "k"),
		Client: sc,
		Cache:  tc,
	})

	// A tiny lookahead keeps page three out of the initial prefetch.
	coord := New(Config{
		Fetcher:         f,
		Debounce:        300 * time.Millisecond,
		LookaheadTarget: 1,
	})
	t.Cleanup(coord.Stop)

	_, err = coord.SetFilter(t.Context(), moviesPopularity())
	require.NoError(t, err)
	snap := waitForState(t, coord, "loaded")
	require.Len(t, snap.Items, 20)

	// Ride the trigger repeatedly; nothing fetches inside the window.
	for i := 0; i < 3; i++ {
		_, err = coord.LoadMoreIfNeeded(t.Context(), 19)
		require.NoError(t, err)
	}
	time.Sleep(100 * time.Millisecond)
	require.False(t, sc.requested("page=3"))

	require.Eventually(t, func() bool {
		s, err := coord.Snapshot(t.Context())
		require.NoError(t, err)

		return len(s.Items) == 40
	}, 5*time.Second, 5*time.Millisecond)
	require.True(t, sc.requested("page=3"))
}

// TestRefreshFailureKeepsOldItems checks that a refresh that cannot reach
// upstream leaves the previous items on screen, stalled.
func TestRefreshFailureKeepsOldItems(t *testing.T) {
	t.Parallel()

	sc := &script{}
	sc.set(func(*url.URL) ([]byte, error) {
		return listBody(1, 1,
			item("movie", 1, 50), item("movie", 2, 40),
		)
	})

	coord := newTestCoordinator(t, sc)
	_, err := coord.SetFilter(t.Context(), moviesPopularity())
	require.NoError(t, err)
	waitForState(t, coord, "exhausted")

	sc.set(func(*url.URL) ([]byte, error) {
		return failWith(upstream.KindNoConnection)
	})
	_, err = coord.Refresh(t.Context(), false)
	require.NoError(t, err)

	snap := waitForState(t, coord, "loaded_stalled")
	require.Equal(t, []int64{1, 2}, ids(snap))
}

// TestFilterChangeOrphansInFlightLoad checks session fencing: results of
// a load cancelled by a filter change never leak into the new session.
func TestFilterChangeOrphansInFlightLoad(t *testing.T) {
	t.Parallel()

	sc := &script{}
	sc.set(func(u *url.URL) ([]byte, error) {
		if u.Query().Get("sort_by") == "vote_average.desc" {
			// The soon-to-be-orphaned load is slow.
			time.Sleep(100 * time.Millisecond)
			return listBody(1, 1, item("movie", 666, 1))
		}

		return listBody(1, 1, item("movie", 1, 10))
	})

	coord := newTestCoordinator(t, sc)

	_, err := coord.SetFilter(t.Context(),
		moviesPopularity().WithSort(filter.SortScoreDesc))
	require.NoError(t, err)

	// Let the slow load start, then change filters under it.
	time.Sleep(40 * time.Millisecond)
	_, err = coord.SetFilter(t.Context(),
		moviesPopularity().WithSort(filter.SortDateDesc))
	require.NoError(t, err)

	snap := waitForState(t, coord, "exhausted")
	require.Equal(t, []int64{1}, ids(snap))

	// Even after the orphan lands, the stream is unchanged.
	time.Sleep(150 * time.Millisecond)
	snap, err = coord.Snapshot(t.Context())
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids(snap))
}

// TestOfflineStaleLoadIsFlagged checks that a load served from expired
// cache marks the snapshot stale.
func TestOfflineStaleLoadIsFlagged(t *testing.T) {
	t.Parallel()

	var clockMu sync.Mutex
	clock := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}

	tc, err := cache.New(cache.Config{Dir: t.TempDir(), Now: now})
	require.NoError(t, err)

	sc := &script{}
	sc.set(func(*url.URL) ([]byte, error) {
		return listBody(1, 1, item("movie", 1, 10))
	})

	f := fetcher.New(fetcher.Config{
		Routes: upstream.NewRoutes("https://example.test/3", "k"),
		Client: sc,
		Cache:  tc,
		Now:    now,
	})

	first := New(Config{Fetcher: f, Debounce: 10 * time.Millisecond})
	_, err = first.SetFilter(t.Context(), moviesPopularity())
	require.NoError(t, err)
	waitForState(t, first, "exhausted")
	first.Stop()

	// The cached page expires and the network goes away.
	clockMu.Lock()
	clock = clock.Add(cache.ClassGrid.TTL() + time.Minute)
	clockMu.Unlock()
	sc.set(func(*url.URL) ([]byte, error) {
		return failWith(upstream.KindNoConnection)
	})

	second := New(Config{Fetcher: f, Debounce: 10 * time.Millisecond})
	t.Cleanup(second.Stop)
	_, err = second.SetFilter(t.Context(), moviesPopularity())
	require.NoError(t, err)

	snap := waitForState(t, second, "exhausted")
	require.True(t, snap.Stale)
	require.Equal(t, []int64{1}, ids(snap))
}
