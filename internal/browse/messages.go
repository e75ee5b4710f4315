package browse

import (
	"github.com/roasbeef/marquee/internal/baselib/actor"
	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/roasbeef/marquee/internal/filter"
	"github.com/roasbeef/marquee/internal/stream"
)

// SetFilterRequest stages a new filter configuration for the stream.
type SetFilterRequest struct {
	actor.BaseMessage

	// Config is the desired configuration. It is normalized before it
	// is applied.
	Config filter.Config
}

// MessageType implements actor.Message.
func (SetFilterRequest) MessageType() string { return "browse.set_filter" }

// LoadInitialRequest starts the first page load of the current session.
type LoadInitialRequest struct {
	actor.BaseMessage
}

// MessageType implements actor.Message.
func (LoadInitialRequest) MessageType() string { return "browse.load_initial" }

// LoadMoreRequest reports the caller's scroll position so the stream can
// decide whether to extend itself.
type LoadMoreRequest struct {
	actor.BaseMessage

	// VisibleIndex is the index of the last row the caller can see.
	VisibleIndex int
}

// MessageType implements actor.Message.
func (LoadMoreRequest) MessageType() string { return "browse.load_more" }

// RefreshRequest replays the current configuration from the first page.
type RefreshRequest struct {
	actor.BaseMessage

	// Bypass skips fresh cache entries so the reload revalidates
	// against upstream.
	Bypass bool
}

// MessageType implements actor.Message.
func (RefreshRequest) MessageType() string { return "browse.refresh" }

// SnapshotRequest reads the current stream view without side effects.
type SnapshotRequest struct {
	actor.BaseMessage
}

// MessageType implements actor.Message.
func (SnapshotRequest) MessageType() string { return "browse.snapshot" }

// StreamResponse carries the stream view resulting from a stream-facing
// request.
type StreamResponse struct {
	// Snapshot is the observable stream view.
	Snapshot stream.Snapshot

	// Error is set when the request could not reach the stream.
	Error error
}

// DetailRequest fetches the full record of one item.
type DetailRequest struct {
	actor.BaseMessage

	// ID is the item to look up.
	ID catalog.ItemID

	// Bypass skips a fresh cache entry and refetches the record.
	Bypass bool
}

// MessageType implements actor.Message.
func (DetailRequest) MessageType() string { return "browse.detail" }

// DetailResponse carries a detail lookup result.
type DetailResponse struct {
	// Detail is the full record, nil on error.
	Detail *catalog.Detail

	// Stale marks a record served from an expired cache entry while
	// upstream was unreachable.
	Stale bool

	// Error is set when the lookup failed outright.
	Error error
}

// TagsRequest fetches the cross-category tag vocabulary.
type TagsRequest struct {
	actor.BaseMessage
}

// MessageType implements actor.Message.
func (TagsRequest) MessageType() string { return "browse.tags" }

// TagsResponse carries the merged tag vocabulary.
type TagsResponse struct {
	// Tags are the cross-category tags, sorted by name.
	Tags []filter.CrossTag

	// Error is set when the genre reference lists were unavailable.
	Error error
}

// SetOfflineRequest toggles offline mode.
type SetOfflineRequest struct {
	actor.BaseMessage

	// Offline is the desired mode.
	Offline bool
}

// MessageType implements actor.Message.
func (SetOfflineRequest) MessageType() string { return "browse.set_offline" }

// StatusRequest reads service-level status.
type StatusRequest struct {
	actor.BaseMessage
}

// MessageType implements actor.Message.
func (StatusRequest) MessageType() string { return "browse.status" }

// StatusResponse carries service-level status.
type StatusResponse struct {
	// Offline is the current offline mode.
	Offline bool

	// CachedEntries is the memory tier entry count.
	CachedEntries int
}

// CachePruneRequest removes durable cache entries past the retention age.
type CachePruneRequest struct {
	actor.BaseMessage
}

// MessageType implements actor.Message.
func (CachePruneRequest) MessageType() string { return "browse.cache_prune" }

// CacheClearRequest discards the whole cache, both tiers.
type CacheClearRequest struct {
	actor.BaseMessage
}

// MessageType implements actor.Message.
func (CacheClearRequest) MessageType() string { return "browse.cache_clear" }

// CacheResponse carries the outcome of a cache maintenance request.
type CacheResponse struct {
	// Removed is the number of durable entries removed.
	Removed int

	// Error is set when the maintenance operation failed.
	Error error
}
