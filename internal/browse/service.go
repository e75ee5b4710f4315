// Package browse is the service facade in front of the streaming,
// fetching, caching, and network layers. One actor owns the whole
// browsing surface: the HTTP API, the CLI, and the websocket hub all talk
// to it and nothing else.
package browse

import (
	"context"
	"fmt"
	"sort"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/baselib/actor"
	"github.com/roasbeef/marquee/internal/cache"
	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/roasbeef/marquee/internal/fetcher"
	"github.com/roasbeef/marquee/internal/filter"
	"github.com/roasbeef/marquee/internal/netclient"
	"github.com/roasbeef/marquee/internal/stream"
)

// ServiceKey is the service key for the browse service actor.
var ServiceKey = actor.NewServiceKey[BrowseRequest, BrowseResponse](
	"browse-service",
)

// BrowseRequest is the union type for all browse service requests.
type BrowseRequest interface {
	actor.Message
	isBrowseRequest()
}

// Ensure all request types implement BrowseRequest.
func (SetFilterRequest) isBrowseRequest()   {}
func (LoadInitialRequest) isBrowseRequest() {}
func (LoadMoreRequest) isBrowseRequest()    {}
func (RefreshRequest) isBrowseRequest()     {}
func (SnapshotRequest) isBrowseRequest()    {}
func (DetailRequest) isBrowseRequest()      {}
func (TagsRequest) isBrowseRequest()        {}
func (SetOfflineRequest) isBrowseRequest()  {}
func (StatusRequest) isBrowseRequest()      {}
func (CachePruneRequest) isBrowseRequest()  {}
func (CacheClearRequest) isBrowseRequest()  {}

// BrowseResponse is the union type for all browse service responses.
type BrowseResponse interface {
	isBrowseResponse()
}

// Ensure all response types implement BrowseResponse.
func (StreamResponse) isBrowseResponse() {}
func (DetailResponse) isBrowseResponse() {}
func (TagsResponse) isBrowseResponse()   {}
func (StatusResponse) isBrowseResponse() {}
func (CacheResponse) isBrowseResponse()  {}

// Service is the browse service actor behavior.
type Service struct {
	coord   *stream.Coordinator
	fetcher *fetcher.Fetcher
	net     *netclient.Client
	cache   *cache.TieredCache
}

// NewService creates a browse service over the assembled layers.
func NewService(coord *stream.Coordinator, f *fetcher.Fetcher,
	net *netclient.Client, tc *cache.TieredCache) *Service {

	return &Service{
		coord:   coord,
		fetcher: f,
		net:     net,
		cache:   tc,
	}
}

// Receive implements actor.Behavior by dispatching to type-specific
// handlers.
func (s *Service) Receive(ctx context.Context,
	msg BrowseRequest) fn.Result[BrowseResponse] {

	switch m := msg.(type) {
	case SetFilterRequest:
		snap, err := s.coord.SetFilter(ctx, m.Config)
		return ok(StreamResponse{Snapshot: snap, Error: err})

	case LoadInitialRequest:
		snap, err := s.coord.LoadInitial(ctx)
		return ok(StreamResponse{Snapshot: snap, Error: err})

	case LoadMoreRequest:
		snap, err := s.coord.LoadMoreIfNeeded(ctx, m.VisibleIndex)
		return ok(StreamResponse{Snapshot: snap, Error: err})

	case RefreshRequest:
		snap, err := s.coord.Refresh(ctx, m.Bypass)
		return ok(StreamResponse{Snapshot: snap, Error: err})

	case SnapshotRequest:
		snap, err := s.coord.Snapshot(ctx)
		return ok(StreamResponse{Snapshot: snap, Error: err})

	case DetailRequest:
		return ok(s.handleDetail(ctx, m))

	case TagsRequest:
		return ok(s.handleTags(ctx))

	case SetOfflineRequest:
		s.net.SetOffline(m.Offline)
		log.InfoS(ctx, "Offline mode changed",
			"offline", m.Offline)
		return ok(s.status())

	case StatusRequest:
		return ok(s.status())

	case CachePruneRequest:
		removed, err := s.cache.Sweep(cache.DefaultSweepAge)
		return ok(CacheResponse{Removed: removed, Error: err})

	case CacheClearRequest:
		return ok(CacheResponse{Error: s.cache.Clear()})

	default:
		return fn.Err[BrowseResponse](fmt.Errorf(
			"unknown message type: %T", msg,
		))
	}
}

func ok(resp BrowseResponse) fn.Result[BrowseResponse] {
	return fn.Ok(resp)
}

// handleDetail processes a DetailRequest. Detail lookups always allow an
// expired fallback so a previously viewed item stays readable offline.
func (s *Service) handleDetail(ctx context.Context,
	req DetailRequest) DetailResponse {

	detail, err := s.fetcher.FetchDetail(ctx, req.ID, fetcher.Policy{
		AllowExpired: true,
		BypassCache:  req.Bypass,
	})
	if err != nil {
		return DetailResponse{Error: err}
	}

	return DetailResponse{
		Detail: detail.Value,
		Stale:  detail.IsStale,
	}
}

// handleTags builds the cross-category tag vocabulary by pairing the two
// genre reference lists on name. A name present in only one list becomes
// a single-category tag.
func (s *Service) handleTags(ctx context.Context) TagsResponse {
	movieGenres, err := s.fetcher.FetchGenres(
		ctx, catalog.CategoryMovie,
	)
	if err != nil {
		return TagsResponse{Error: err}
	}

	tvGenres, err := s.fetcher.FetchGenres(ctx, catalog.CategoryTV)
	if err != nil {
		return TagsResponse{Error: err}
	}

	byName := make(map[string]filter.CrossTag)
	for _, g := range movieGenres {
		byName[g.Name] = filter.CrossTag{
			Name:    g.Name,
			MovieID: fn.Some(g.ID),
			TVID:    fn.None[int64](),
		}
	}
	for _, g := range tvGenres {
		tag, found := byName[g.Name]
		if !found {
			tag = filter.CrossTag{
				Name:    g.Name,
				MovieID: fn.None[int64](),
			}
		}
		tag.TVID = fn.Some(g.ID)
		byName[g.Name] = tag
	}

	tags := make([]filter.CrossTag, 0, len(byName))
	for _, tag := range byName {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		return tags[i].Name < tags[j].Name
	})

	return TagsResponse{Tags: tags}
}

func (s *Service) status() StatusResponse {
	return StatusResponse{
		Offline:       s.net.Offline(),
		CachedEntries: s.cache.MemoryLen(),
	}
}
