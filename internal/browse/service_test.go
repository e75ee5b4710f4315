package browse

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/actorutil"
	"github.com/roasbeef/marquee/internal/baselib/actor"
	"github.com/roasbeef/marquee/internal/cache"
	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/roasbeef/marquee/internal/fetcher"
	"github.com/roasbeef/marquee/internal/filter"
	"github.com/roasbeef/marquee/internal/netclient"
	"github.com/roasbeef/marquee/internal/stream"
	"github.com/roasbeef/marquee/internal/upstream"
	"github.com/stretchr/testify/require"
)

// scriptClient routes scripted responses by URL path.
type scriptClient struct {
	mu     sync.Mutex
	handle func(u *url.URL) ([]byte, error)
}

func (s *scriptClient) Fetch(_ context.Context,
	raw string) ([]byte, error) {

	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()

	return handle(u)
}

func defaultScript(u *url.URL) ([]byte, error) {
	switch {
	case strings.Contains(u.Path, "/discover/movie"):
		return []byte(`{"page": 1, "total_pages": 1,
			"total_results": 2, "results": [
			{"id": 1, "title": "One", "popularity": 90},
			{"id": 2, "title": "Two", "popularity": 80}]}`), nil

	case strings.Contains(u.Path, "/movie/1"):
		return []byte(`{"id": 1, "title": "One",
			"runtime": 100}`), nil

	case strings.Contains(u.Path, "/genre/movie/list"):
		return []byte(`{"genres": [
			{"id": 28, "name": "Action"},
			{"id": 9999, "name": "Film Noir"}]}`), nil

	case strings.Contains(u.Path, "/genre/tv/list"):
		return []byte(`{"genres": [
			{"id": 10759, "name": "Action"},
			{"id": 10764, "name": "Reality"}]}`), nil

	default:
		return nil, upstream.NewError(
			upstream.KindNotFound, fmt.Errorf("no script for %s",
				u.Path),
		)
	}
}

type serviceFixture struct {
	ref    actor.ActorRef[BrowseRequest, BrowseResponse]
	script *scriptClient
}

func newTestService(t *testing.T) *serviceFixture {
	t.Helper()

	sc := &scriptClient{handle: defaultScript}

	tc, err := cache.New(cache.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	f := fetcher.New(fetcher.Config{
		Routes: upstream.NewRoutes("https://example.test/3", "k"),
		Client: sc,
		Cache:  tc,
	})

	coord := stream.New(stream.Config{
		Fetcher:  f,
		Debounce: 10 * time.Millisecond,
	})
	t.Cleanup(coord.Stop)

	net := netclient.New(netclient.Config{})
	t.Cleanup(net.Stop)

	system := actor.NewActorSystem()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), time.Second,
		)
		defer cancel()
		_ = system.Shutdown(ctx)
	})

	ref := ServiceKey.Spawn(system, "browse-service",
		NewService(coord, f, net, tc))

	return &serviceFixture{ref: ref, script: sc}
}

func askStream(t *testing.T, fx *serviceFixture,
	req BrowseRequest) stream.Snapshot {

	t.Helper()

	resp, err := actorutil.AskAwait(t.Context(), fx.ref, req)
	require.NoError(t, err)

	sr, isStream := resp.(StreamResponse)
	require.True(t, isStream, "unexpected response %T", resp)
	require.NoError(t, sr.Error)

	return sr.Snapshot
}

// waitForStreamState polls snapshots through the service until the stream
// reaches the named state.
func waitForStreamState(t *testing.T, fx *serviceFixture,
	state string) stream.Snapshot {

	t.Helper()

	var snap stream.Snapshot
	require.Eventually(t, func() bool {
		snap = askStream(t, fx, SnapshotRequest{})
		return snap.State.String() == state
	}, 5*time.Second, 5*time.Millisecond)

	return snap
}

// TestStreamRequestsRoundTrip drives a filter change through the service
// and reads the resulting stream back.
func TestStreamRequestsRoundTrip(t *testing.T) {
	t.Parallel()

	fx := newTestService(t)

	cfg := filter.Default().
		WithCategory(filter.CategoryMovies).
		WithSort(filter.SortPopularity)
	askStream(t, fx, SetFilterRequest{Config: cfg})

	snap := waitForStreamState(t, fx, "exhausted")
	require.Len(t, snap.Items, 2)
	require.Equal(t, cfg, snap.Filter)
	require.Equal(t, "One", snap.Items[0].Title)
}

// TestRefreshBypassRevalidates checks that a bypassing refresh refetches
// pages whose cache entries are still fresh, while a plain refresh is
// satisfied from the cache.
func TestRefreshBypassRevalidates(t *testing.T) {
	t.Parallel()

	fx := newTestService(t)

	var (
		mu    sync.Mutex
		grids int
	)
	fx.script.mu.Lock()
	fx.script.handle = func(u *url.URL) ([]byte, error) {
		if strings.Contains(u.Path, "/discover/movie") {
			mu.Lock()
			grids++
			mu.Unlock()
		}
		return defaultScript(u)
	}
	fx.script.mu.Unlock()

	cfg := filter.Default().
		WithCategory(filter.CategoryMovies).
		WithSort(filter.SortPopularity)
	askStream(t, fx, SetFilterRequest{Config: cfg})
	waitForStreamState(t, fx, "exhausted")

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return grids
	}
	require.Equal(t, 1, count())

	// A plain refresh finds the page still fresh in the cache.
	askStream(t, fx, RefreshRequest{})
	waitForStreamState(t, fx, "exhausted")
	require.Equal(t, 1, count())

	// A bypassing refresh goes back to upstream.
	askStream(t, fx, RefreshRequest{Bypass: true})
	waitForStreamState(t, fx, "exhausted")
	require.Equal(t, 2, count())
}

// TestDetailRequest checks the detail lookup path.
func TestDetailRequest(t *testing.T) {
	t.Parallel()

	fx := newTestService(t)

	resp, err := actorutil.AskAwait[BrowseRequest, BrowseResponse](t.Context(), fx.ref,
		DetailRequest{ID: catalog.ItemID{
			Category: catalog.CategoryMovie, ID: 1,
		}})
	require.NoError(t, err)

	dr, isDetail := resp.(DetailResponse)
	require.True(t, isDetail)
	require.NoError(t, dr.Error)
	require.Equal(t, "One", dr.Detail.Title)
	require.Equal(t, int64(100), dr.Detail.RuntimeMinutes.UnwrapOr(0))
}

// TestTagsPairGenresByName checks that the two genre lists merge into
// cross-category tags on matching names.
func TestTagsPairGenresByName(t *testing.T) {
	t.Parallel()

	fx := newTestService(t)

	resp, err := actorutil.AskAwait[BrowseRequest, BrowseResponse](t.Context(), fx.ref, TagsRequest{})
	require.NoError(t, err)

	tr, isTags := resp.(TagsResponse)
	require.True(t, isTags)
	require.NoError(t, tr.Error)

	require.Equal(t, []filter.CrossTag{
		{
			Name:    "Action",
			MovieID: fn.Some(int64(28)),
			TVID:    fn.Some(int64(10759)),
		},
		{
			Name:    "Film Noir",
			MovieID: fn.Some(int64(9999)),
			TVID:    fn.None[int64](),
		},
		{
			Name:    "Reality",
			MovieID: fn.None[int64](),
			TVID:    fn.Some(int64(10764)),
		},
	}, tr.Tags)
}

// TestOfflineToggleAndStatus checks the offline flag round trip.
func TestOfflineToggleAndStatus(t *testing.T) {
	t.Parallel()

	fx := newTestService(t)

	resp, err := actorutil.AskAwait[BrowseRequest, BrowseResponse](t.Context(), fx.ref,
		SetOfflineRequest{Offline: true})
	require.NoError(t, err)

	status, isStatus := resp.(StatusResponse)
	require.True(t, isStatus)
	require.True(t, status.Offline)

	resp, err = actorutil.AskAwait[BrowseRequest, BrowseResponse](t.Context(), fx.ref,
		SetOfflineRequest{Offline: false})
	require.NoError(t, err)
	status = resp.(StatusResponse)
	require.False(t, status.Offline)
}

// TestCacheMaintenanceRequests checks prune and clear through the
// service.
func TestCacheMaintenanceRequests(t *testing.T) {
	t.Parallel()

	fx := newTestService(t)

	// Populate the cache through a detail lookup, then clear.
	_, err := actorutil.AskAwait[BrowseRequest, BrowseResponse](t.Context(), fx.ref,
		DetailRequest{ID: catalog.ItemID{
			Category: catalog.CategoryMovie, ID: 1,
		}})
	require.NoError(t, err)

	resp, err := actorutil.AskAwait[BrowseRequest, BrowseResponse](t.Context(), fx.ref,
		CacheClearRequest{})
	require.NoError(t, err)
	cr, isCache := resp.(CacheResponse)
	require.True(t, isCache)
	require.NoError(t, cr.Error)

	resp, err = actorutil.AskAwait[BrowseRequest, BrowseResponse](t.Context(), fx.ref,
		CachePruneRequest{})
	require.NoError(t, err)
	cr = resp.(CacheResponse)
	require.NoError(t, cr.Error)
	require.Zero(t, cr.Removed)
}
