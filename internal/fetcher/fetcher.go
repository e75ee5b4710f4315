// Package fetcher turns filter configurations into upstream requests. It
// decides which endpoint serves a configuration, which feeds the
// configuration fans out into, and runs every request cache-first with a
// stale fallback when the network is unavailable.
package fetcher

import (
	"context"
	"net/url"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/cache"
	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/roasbeef/marquee/internal/filter"
	"github.com/roasbeef/marquee/internal/upstream"
	"golang.org/x/sync/errgroup"
)

// BodyFetcher performs deduplicated, rate-limited HTTP fetches.
type BodyFetcher interface {
	// Fetch returns the response body for the URL.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Feed identifies one paginated upstream sequence. A configuration fans
// out into one or two feeds: single-category configurations and the
// combined trending feed are one sequence, while filtered cross-category
// configurations run one sequence per category and merge downstream. None
// marks the combined trending feed.
type Feed struct {
	// Category is the feed's category, or None for combined trending.
	Category fn.Option[catalog.Category]
}

// String names the feed for logging and cache keys.
func (f Feed) String() string {
	name := "all"
	f.Category.WhenSome(func(c catalog.Category) { name = c.String() })
	return name
}

// Fetcher routes and runs catalog requests.
type Fetcher struct {
	routes *upstream.Routes
	client BodyFetcher
	cache  *cache.TieredCache
	now    func() time.Time
}

// Config assembles a fetcher.
type Config struct {
	// Routes builds upstream URLs.
	Routes *upstream.Routes

	// Client performs the physical fetches.
	Client BodyFetcher

	// Cache is the response cache, consulted before every fetch.
	Cache *cache.TieredCache

	// Now is the clock anchoring relative date windows. Defaults to
	// time.Now.
	Now func() time.Time
}

// New creates a fetcher.
func New(cfg Config) *Fetcher {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Fetcher{
		routes: cfg.Routes,
		client: cfg.Client,
		cache:  cfg.Cache,
		now:    now,
	}
}

// trendingMode reports whether the configuration is served by the
// trending feed. The invariant engine guarantees a trending sort never
// carries active filters, so this is a pure sort check.
func trendingMode(cfg filter.Config) bool {
	return cfg.Sort == filter.SortTrending
}

// FeedsFor expands a configuration into its feeds. A category whose
// content can never match an active tag is omitted; when no category can
// match, the slice is empty and the stream is empty by construction rather
// than by an upstream round trip.
func FeedsFor(cfg filter.Config) []Feed {
	if trendingMode(cfg) {
		if cfg.Category == filter.CategoryAll {
			return []Feed{{Category: fn.None[catalog.Category]()}}
		}
	}

	feeds := make([]Feed, 0, 2)
	for _, cat := range cfg.Categories() {
		applies := true
		cfg.Tag.WhenSome(func(tag filter.CrossTag) {
			applies = tag.AppliesTo(cat)
		})
		if !applies {
			continue
		}

		feeds = append(feeds, Feed{Category: fn.Some(cat)})
	}

	return feeds
}

// pageURL builds the request URL for one page of a feed.
func (f *Fetcher) pageURL(cfg filter.Config, feed Feed, page int) string {
	if trendingMode(cfg) {
		return f.routes.TrendingURL(feed.Category, page)
	}

	// Discover is always per-category; the combined feed never reaches
	// here because FeedsFor only emits it in trending mode.
	cat := feed.Category.UnwrapOr(catalog.CategoryMovie)

	return f.routes.DiscoverURL(cat, cfg, page, f.now())
}

// canonicalKey derives the cache key from a request URL with the
// credential removed, so rotating the API key does not orphan the cache.
func canonicalKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return cache.Key(rawURL)
	}

	q := u.Query()
	q.Del("api_key")
	u.RawQuery = q.Encode()

	return cache.Key(u.String())
}

// Policy controls how one fetch interacts with the tiered cache.
type Policy struct {
	// AllowExpired permits serving an expired cache entry when the
	// network attempt fails with a transient error.
	AllowExpired bool

	// BypassCache skips the fresh-cache read and forces a network
	// attempt. The response is still written through, so a bypassed
	// fetch repopulates the cache for later readers.
	BypassCache bool
}

// fetchBody runs the cache-first protocol for one URL: fresh cache hit,
// else network with write-through, else a stale cache entry when the
// failure was transient and the policy allows expired data.
func (f *Fetcher) fetchBody(ctx context.Context, fetchURL string,
	class cache.Class, pol Policy) ([]byte, bool, error) {

	key := canonicalKey(fetchURL)

	if !pol.BypassCache {
		if hit, ok := f.cache.Get(key, class, false); ok {
			log.TraceS(ctx, "Cache hit", "class", class,
				"url", fetchURL)

			return hit.Value, false, nil
		}
	}

	body, err := f.client.Fetch(ctx, fetchURL)
	if err == nil {
		if cacheErr := f.cache.Put(key, body); cacheErr != nil {
			log.WarnS(ctx, "Cache write failed", cacheErr,
				"url", fetchURL)
		}

		return body, false, nil
	}

	// Transient failures may still be answerable from an expired entry.
	// This covers bypassed fetches too: a forced revalidation that hits
	// a dead network degrades to the data it meant to replace.
	if pol.AllowExpired && upstream.IsRetryable(err) {
		if hit, ok := f.cache.Get(key, class, true); ok {
			log.DebugS(ctx, "Serving stale cache entry",
				"class", class, "url", fetchURL)

			return hit.Value, hit.IsStale, nil
		}
	}

	return nil, false, err
}

// FetchPage returns one decoded page of a feed. The stale flag reports
// that the page came from an expired cache entry on an offline fallback.
func (f *Fetcher) FetchPage(ctx context.Context, cfg filter.Config,
	feed Feed, page int, pol Policy) (*upstream.Page, bool, error) {

	body, stale, err := f.fetchBody(
		ctx, f.pageURL(cfg, feed, page), cache.ClassGrid, pol,
	)
	if err != nil {
		return nil, false, err
	}

	decoded, err := upstream.DecodeListPage(body, feed.Category)
	if err != nil {
		return nil, false, err
	}

	if decoded.Unsupported > 0 {
		log.DebugS(ctx, "Dropped unsupported results",
			"feed", feed, "count", decoded.Unsupported)
	}

	return decoded, stale, nil
}

// PageResult pairs a feed with its fetched page.
type PageResult struct {
	// Feed is the sequence the page belongs to.
	Feed Feed

	// Page is the decoded page.
	Page *upstream.Page

	// Stale reports an expired-cache fallback.
	Stale bool
}

// FetchPages fetches one page per feed concurrently. It fails as a unit:
// one feed failing cancels the rest, because a partially merged
// cross-category page would reorder items once the missing half arrives.
func (f *Fetcher) FetchPages(ctx context.Context, cfg filter.Config,
	pages map[Feed]int, pol Policy) ([]PageResult, error) {

	results := make([]PageResult, 0, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	resCh := make(chan PageResult, len(pages))
	for feed, page := range pages {
		g.Go(func() error {
			decoded, stale, err := f.FetchPage(
				gctx, cfg, feed, page, pol,
			)
			if err != nil {
				return err
			}

			resCh <- PageResult{
				Feed:  feed,
				Page:  decoded,
				Stale: stale,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(resCh)

	for res := range resCh {
		results = append(results, res)
	}

	return results, nil
}

// FetchDetail returns the full record for one item. Detail lookups honor
// the expired fallback, so a previously viewed item stays readable
// offline.
func (f *Fetcher) FetchDetail(ctx context.Context, id catalog.ItemID,
	pol Policy) (catalog.Stale[*catalog.Detail], error) {

	body, stale, err := f.fetchBody(
		ctx, f.routes.DetailURL(id), cache.ClassDetail, pol,
	)
	if err != nil {
		return catalog.Stale[*catalog.Detail]{}, err
	}

	detail, err := upstream.DecodeDetail(body, id)
	if err != nil {
		return catalog.Stale[*catalog.Detail]{}, err
	}

	return catalog.Stale[*catalog.Detail]{
		Value:   detail,
		IsStale: stale,
	}, nil
}

// FetchGenres returns the genre reference list for a category.
func (f *Fetcher) FetchGenres(ctx context.Context,
	cat catalog.Category) ([]catalog.Genre, error) {

	body, _, err := f.fetchBody(
		ctx, f.routes.GenreListURL(cat), cache.ClassReference,
		Policy{AllowExpired: true},
	)
	if err != nil {
		return nil, err
	}

	return upstream.DecodeGenreList(body)
}
