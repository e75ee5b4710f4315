package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/roasbeef/marquee/internal/baselib/actor"
	"github.com/roasbeef/marquee/internal/browse"
	"github.com/roasbeef/marquee/internal/cache"
	"github.com/roasbeef/marquee/internal/fetcher"
	"github.com/roasbeef/marquee/internal/netclient"
	"github.com/roasbeef/marquee/internal/stream"
	"github.com/roasbeef/marquee/internal/upstream"
	"github.com/stretchr/testify/require"
)

// stubClient serves canned upstream bodies by URL path.
type stubClient struct{}

func (stubClient) Fetch(_ context.Context, raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.Contains(u.Path, "/trending/all"):
		return []byte(`{"page": 1, "total_pages": 1,
			"total_results": 2, "results": [
			{"id": 7, "media_type": "movie", "title": "Seven",
			 "popularity": 70},
			{"id": 8, "media_type": "tv", "name": "Eight",
			 "popularity": 60}]}`), nil

	case strings.Contains(u.Path, "/movie/7"):
		return []byte(`{"id": 7, "title": "Seven",
			"runtime": 127, "status": "Released"}`), nil

	case strings.Contains(u.Path, "/genre/movie/list"):
		return []byte(`{"genres": [
			{"id": 28, "name": "Action"}]}`), nil

	case strings.Contains(u.Path, "/genre/tv/list"):
		return []byte(`{"genres": [
			{"id": 10759, "name": "Action"}]}`), nil

	default:
		return nil, upstream.NewError(
			upstream.KindNotFound,
			fmt.Errorf("no stub for %s", u.Path),
		)
	}
}

type webFixture struct {
	server *Server
	ts     *httptest.Server
}

func newWebFixture(t *testing.T) *webFixture {
	t.Helper()

	tc, err := cache.New(cache.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	f := fetcher.New(fetcher.Config{
		Routes: upstream.NewRoutes("https://example.test/3", "k"),
		Client: stubClient{},
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

	ref := browse.ServiceKey.Spawn(system, "browse-service",
		browse.NewService(coord, f, net, tc))

	s := NewServer(DefaultConfig(), ref)
	ts := httptest.NewServer(s.mux)
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(
			context.Background(), time.Second,
		)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	return &webFixture{server: s, ts: ts}
}

func (fx *webFixture) get(t *testing.T, path string,
	out any) *http.Response {

	t.Helper()

	resp, err := http.Get(fx.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (fx *webFixture) post(t *testing.T, path string, body any,
	out any) *http.Response {

	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	resp, err := http.Post(
		fx.ts.URL+path, "application/json", &buf,
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type snapshotEnvelope struct {
	Data APISnapshot `json:"data"`
}

// waitForAPIState polls the stream endpoint until the stream reaches the
// named state.
func waitForAPIState(t *testing.T, fx *webFixture,
	state string) APISnapshot {

	t.Helper()

	var env snapshotEnvelope
	require.Eventually(t, func() bool {
		resp := fx.get(t, "/api/v1/stream", &env)
		return resp.StatusCode == http.StatusOK &&
			env.Data.State == state
	}, 5*time.Second, 10*time.Millisecond)

	return env.Data
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)

	var body map[string]string
	resp := fx.get(t, "/api/v1/health", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

// TestStreamLifecycleOverHTTP drives a full load through the JSON API.
func TestStreamLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)

	var env snapshotEnvelope
	resp := fx.post(t, "/api/v1/stream/load", nil, &env)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap := waitForAPIState(t, fx, "exhausted")
	require.Len(t, snap.Items, 2)
	require.Equal(t, "Seven", snap.Items[0].Title)
	require.Equal(t, "movie", snap.Items[0].Category)
	require.Equal(t, "all", snap.Filter.Category)
	require.Equal(t, "trending", snap.Filter.Sort)
	require.False(t, snap.Stale)
}

// TestFilterEndpointAppliesInvariants checks that a trending sort paired
// with an active window degrades server-side.
func TestFilterEndpointAppliesInvariants(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)

	var env snapshotEnvelope
	resp := fx.post(t, "/api/v1/stream/filter", APIFilter{
		Category: "movies",
		Sort:     "trending",
		Window:   "last_30",
	}, &env)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "popularity", env.Data.Filter.Sort)
	require.Equal(t, "last_30", env.Data.Filter.Window)
}

func TestFilterEndpointRejectsUnknownNames(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)

	var apiErr APIError
	resp := fx.post(t, "/api/v1/stream/filter", APIFilter{
		Category: "books",
	}, &apiErr)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_filter", apiErr.Error.Code)
}

func TestItemDetailEndpoint(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)

	var env struct {
		Data APIDetail `json:"data"`
	}
	resp := fx.get(t, "/api/v1/items/movie/7", &env)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Seven", env.Data.Title)
	require.NotNil(t, env.Data.RuntimeMinutes)
	require.Equal(t, int64(127), *env.Data.RuntimeMinutes)

	var apiErr APIError
	resp = fx.get(t, "/api/v1/items/movie/404", &apiErr)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = fx.get(t, "/api/v1/items/books/7", &apiErr)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTagsEndpoint(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)

	var env struct {
		Data []APITag `json:"data"`
	}
	resp := fx.get(t, "/api/v1/tags", &env)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, env.Data, 1)
	require.Equal(t, "Action", env.Data[0].Name)
	require.NotNil(t, env.Data[0].MovieID)
	require.NotNil(t, env.Data[0].TVID)
}

func TestOfflineAndStatusEndpoints(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)

	var env struct {
		Data statusPayload `json:"data"`
	}
	resp := fx.post(t, "/api/v1/offline",
		map[string]bool{"offline": true}, &env)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Data.Offline)

	resp = fx.get(t, "/api/v1/status", &env)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Data.Offline)
}

func TestCacheMaintenanceEndpoints(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)

	// Populate the cache, then clear it.
	fx.get(t, "/api/v1/items/movie/7", nil)

	var env struct {
		Data cachePayload `json:"data"`
	}
	resp := fx.post(t, "/api/v1/cache/clear", nil, &env)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.post(t, "/api/v1/cache/prune", nil, &env)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Zero(t, env.Data.Removed)
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)

	var apiErr APIError
	resp := fx.post(t, "/api/v1/stream", nil, &apiErr)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = fx.get(t, "/api/v1/stream/refresh", &apiErr)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
