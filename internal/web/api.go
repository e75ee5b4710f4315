package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/roasbeef/marquee/internal/actorutil"
	"github.com/roasbeef/marquee/internal/browse"
	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/roasbeef/marquee/internal/stream"
	"github.com/roasbeef/marquee/internal/upstream"
)

// askTimeout caps how long a request handler waits on the browse service.
const askTimeout = 30 * time.Second

// APIResponse wraps API responses.
type APIResponse struct {
	Data any `json:"data"`
}

// APIError represents an API error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error details.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// registerAPIRoutes registers all /api/v1/ routes.
func (s *Server) registerAPIRoutes() {
	// CORS middleware for API routes.
	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods",
					"GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next(w, r)
		}
	}

	// JSON middleware for API routes.
	jsonMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next(w, r)
		}
	}

	api := func(handler http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(jsonMiddleware(handler))
	}

	s.mux.HandleFunc("/api/v1/health", api(s.handleHealth))

	// Stream.
	s.mux.HandleFunc("/api/v1/stream", api(s.handleStream))
	s.mux.HandleFunc("/api/v1/stream/filter", api(s.handleFilter))
	s.mux.HandleFunc("/api/v1/stream/load", api(s.handleLoad))
	s.mux.HandleFunc("/api/v1/stream/more", api(s.handleMore))
	s.mux.HandleFunc("/api/v1/stream/refresh", api(s.handleRefresh))

	// Items and tags.
	s.mux.HandleFunc("/api/v1/items/", api(s.handleItem))
	s.mux.HandleFunc("/api/v1/tags", api(s.handleTags))

	// Status and maintenance.
	s.mux.HandleFunc("/api/v1/status", api(s.handleStatus))
	s.mux.HandleFunc("/api/v1/offline", api(s.handleOffline))
	s.mux.HandleFunc("/api/v1/cache/prune", api(s.handleCachePrune))
	s.mux.HandleFunc("/api/v1/cache/clear", api(s.handleCacheClear))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("Error encoding JSON response: %v", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{
		Error: APIErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeUpstreamError maps an upstream failure onto an HTTP status.
func writeUpstreamError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	var uerr *upstream.Error
	if errors.As(err, &uerr) {
		switch uerr.Kind {
		case upstream.KindNotFound:
			status, code = http.StatusNotFound, "not_found"
		case upstream.KindInvalidRequest:
			status, code = http.StatusBadRequest, "invalid_request"
		case upstream.KindRateLimited:
			status, code = http.StatusTooManyRequests, "rate_limited"
		case upstream.KindNoConnection, upstream.KindTimeout:
			status, code = http.StatusServiceUnavailable, "offline"
		default:
			status, code = http.StatusBadGateway, "upstream_error"
		}
	}

	writeError(w, status, code, err.Error())
}

// askStream sends a stream-facing request to the browse service and unwraps
// the snapshot.
func (s *Server) askStream(ctx context.Context,
	req browse.BrowseRequest) (stream.Snapshot, error) {

	ctx, cancel := context.WithTimeout(ctx, askTimeout)
	defer cancel()

	resp, err := actorutil.AskAwaitTyped[
		browse.BrowseRequest, browse.BrowseResponse,
		browse.StreamResponse,
	](ctx, s.browse, req)
	if err != nil {
		return stream.Snapshot{}, err
	}
	if resp.Error != nil {
		return stream.Snapshot{}, resp.Error
	}

	return resp.Snapshot, nil
}

// streamHandler wraps the snapshot round trip shared by the stream routes.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request,
	req browse.BrowseRequest) {

	snap, err := s.askStream(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: snapshotView(snap)})
}

// handleHealth handles GET /api/v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStream handles GET /api/v1/stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	s.streamHandler(w, r, browse.SnapshotRequest{})
}

// handleFilter handles PUT /api/v1/stream/filter.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	var view APIFilter
	if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body",
			"Invalid filter body")
		return
	}

	cfg, err := parseFilter(view)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter",
			err.Error())
		return
	}

	s.streamHandler(w, r, browse.SetFilterRequest{Config: cfg})
}

// handleLoad handles POST /api/v1/stream/load.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	s.streamHandler(w, r, browse.LoadInitialRequest{})
}

// handleMore handles POST /api/v1/stream/more.
func (s *Server) handleMore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	var body struct {
		VisibleIndex int `json:"visible_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body",
			"Invalid load-more body")
		return
	}

	s.streamHandler(w, r, browse.LoadMoreRequest{
		VisibleIndex: body.VisibleIndex,
	})
}

// handleRefresh handles POST /api/v1/stream/refresh. The body is
// optional; `{"bypass": true}` forces a revalidation past fresh cache
// entries.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	var body struct {
		Bypass bool `json:"bypass"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_body",
			"Invalid refresh body")
		return
	}

	s.streamHandler(w, r, browse.RefreshRequest{Bypass: body.Bypass})
}

// handleItem handles GET /api/v1/items/{category}/{id}. A `bypass=true`
// query forces a refetch past a fresh cache entry.
func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/items/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeError(w, http.StatusBadRequest, "invalid_path",
			"Expected /api/v1/items/{category}/{id}")
		return
	}

	cat, err := parseItemCategory(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_category",
			err.Error())
		return
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id",
			"Invalid item ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	resp, err := actorutil.AskAwaitTyped[
		browse.BrowseRequest, browse.BrowseResponse,
		browse.DetailResponse,
	](ctx, s.browse, browse.DetailRequest{
		ID:     catalog.ItemID{Category: cat, ID: id},
		Bypass: r.URL.Query().Get("bypass") == "true",
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if resp.Error != nil {
		writeUpstreamError(w, resp.Error)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Data: detailView(resp.Detail, resp.Stale),
	})
}

// handleTags handles GET /api/v1/tags.
func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	resp, err := actorutil.AskAwaitTyped[
		browse.BrowseRequest, browse.BrowseResponse,
		browse.TagsResponse,
	](ctx, s.browse, browse.TagsRequest{})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if resp.Error != nil {
		writeUpstreamError(w, resp.Error)
		return
	}

	tags := make([]APITag, 0, len(resp.Tags))
	for _, tag := range resp.Tags {
		tags = append(tags, tagView(tag))
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: tags})
}

// askStatus sends a status-bearing request and unwraps the response.
func (s *Server) askStatus(ctx context.Context,
	req browse.BrowseRequest) (browse.StatusResponse, error) {

	ctx, cancel := context.WithTimeout(ctx, askTimeout)
	defer cancel()

	return actorutil.AskAwaitTyped[
		browse.BrowseRequest, browse.BrowseResponse,
		browse.StatusResponse,
	](ctx, s.browse, req)
}

// statusPayload is the JSON view of the service status.
type statusPayload struct {
	Offline       bool `json:"offline"`
	CachedEntries int  `json:"cached_entries"`
}

// handleStatus handles GET /api/v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	resp, err := s.askStatus(r.Context(), browse.StatusRequest{})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: statusPayload{
		Offline:       resp.Offline,
		CachedEntries: resp.CachedEntries,
	}})
}

// handleOffline handles POST /api/v1/offline.
func (s *Server) handleOffline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	var body struct {
		Offline bool `json:"offline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body",
			"Invalid offline body")
		return
	}

	resp, err := s.askStatus(r.Context(), browse.SetOfflineRequest{
		Offline: body.Offline,
	})
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: statusPayload{
		Offline:       resp.Offline,
		CachedEntries: resp.CachedEntries,
	}})
}

// cachePayload is the JSON view of a cache maintenance result.
type cachePayload struct {
	Removed int `json:"removed"`
}

// cacheHandler wraps the round trip shared by the cache maintenance routes.
func (s *Server) cacheHandler(w http.ResponseWriter, r *http.Request,
	req browse.BrowseRequest) {

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed,
			"method_not_allowed", "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	resp, err := actorutil.AskAwaitTyped[
		browse.BrowseRequest, browse.BrowseResponse,
		browse.CacheResponse,
	](ctx, s.browse, req)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if resp.Error != nil {
		writeUpstreamError(w, resp.Error)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Data: cachePayload{Removed: resp.Removed},
	})
}

// handleCachePrune handles POST /api/v1/cache/prune.
func (s *Server) handleCachePrune(w http.ResponseWriter, r *http.Request) {
	s.cacheHandler(w, r, browse.CachePruneRequest{})
}

// handleCacheClear handles POST /api/v1/cache/clear.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.cacheHandler(w, r, browse.CacheClearRequest{})
}
