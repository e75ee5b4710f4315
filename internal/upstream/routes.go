package upstream

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/roasbeef/marquee/internal/filter"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.themoviedb.org/3"

	// defaultLanguage is the single locale this client queries in.
	defaultLanguage = "en-US"

	// dateFormat is the wire format of all date query parameters.
	dateFormat = "2006-01-02"

	// scoreVoteFloor is the minimum vote count required for score-based
	// sorts. Without a floor, obscure items with a handful of ten-star
	// votes dominate the top of the list.
	scoreVoteFloor = 100

	// certCountry is the certification system used for the movie
	// certification filter.
	certCountry = "US"
)

// Routes builds request URLs for the upstream API. Query parameters are
// encoded in sorted key order, so a given logical request always produces
// the same URL string; request deduplication and cache keying both rely on
// this.
type Routes struct {
	baseURL  string
	apiKey   string
	language string
}

// NewRoutes creates a route table rooted at baseURL. An empty baseURL
// selects the production API.
func NewRoutes(baseURL, apiKey string) *Routes {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Routes{
		baseURL:  baseURL,
		apiKey:   apiKey,
		language: defaultLanguage,
	}
}

// common returns the query parameters present on every request.
func (r *Routes) common(page int) url.Values {
	v := url.Values{}
	v.Set("api_key", r.apiKey)
	v.Set("language", r.language)
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}

	return v
}

// TrendingURL returns the trending feed URL for one category, or the
// combined cross-category feed when cat is None.
func (r *Routes) TrendingURL(cat fn.Option[catalog.Category],
	page int) string {

	segment := "all"
	cat.WhenSome(func(c catalog.Category) { segment = c.String() })

	return fmt.Sprintf("%s/trending/%s/day?%s",
		r.baseURL, segment, r.common(page).Encode())
}

// discoverSortKey maps a sort mode to the upstream sort_by value for a
// category. Trending never reaches discover (the fetcher routes it to the
// trending feed), but it maps to popularity so the table is total.
func discoverSortKey(cat catalog.Category, sort filter.SortMode) string {
	dateField := "primary_release_date"
	if cat == catalog.CategoryTV {
		dateField = "first_air_date"
	}

	switch sort {
	case filter.SortDateDesc:
		return dateField + ".desc"
	case filter.SortDateAsc:
		return dateField + ".asc"
	case filter.SortScoreDesc:
		return "vote_average.desc"
	case filter.SortScoreAsc:
		return "vote_average.asc"
	default:
		return "popularity.desc"
	}
}

// DiscoverURL returns the filtered discover URL for one category under the
// given configuration. The now argument anchors relative date windows.
func (r *Routes) DiscoverURL(cat catalog.Category, cfg filter.Config,
	page int, now time.Time) string {

	v := r.common(page)
	v.Set("sort_by", discoverSortKey(cat, cfg.Sort))

	// Genre tag, using the category-specific genre ID.
	cfg.Tag.WhenSome(func(tag filter.CrossTag) {
		genreID := tag.MovieID
		if cat == catalog.CategoryTV {
			genreID = tag.TVID
		}
		genreID.WhenSome(func(id int64) {
			v.Set("with_genres", strconv.FormatInt(id, 10))
		})
	})

	// Inclusive date bounds, named after the category's date field.
	dateField := "primary_release_date"
	if cat == catalog.CategoryTV {
		dateField = "first_air_date"
	}
	bounds := ResolveWindow(cfg.Window, now)
	bounds.From.WhenSome(func(from time.Time) {
		v.Set(dateField+".gte", from.Format(dateFormat))
	})
	bounds.To.WhenSome(func(to time.Time) {
		v.Set(dateField+".lte", to.Format(dateFormat))
	})

	// Score sorts need a vote floor to be meaningful.
	if cfg.Sort == filter.SortScoreDesc || cfg.Sort == filter.SortScoreAsc {
		v.Set("vote_count.gte", strconv.Itoa(scoreVoteFloor))
	}

	// Certification triple, movies only.
	if cat == catalog.CategoryMovie {
		cfg.Cert.WhenSome(func(cert string) {
			v.Set("certification_country", certCountry)
			v.Set("certification", cert)
			v.Set("include_adult", "false")
		})
	}

	return fmt.Sprintf("%s/discover/%s?%s",
		r.baseURL, cat, v.Encode())
}

// DetailURL returns the single-item detail URL.
func (r *Routes) DetailURL(id catalog.ItemID) string {
	return fmt.Sprintf("%s/%s/%d?%s",
		r.baseURL, id.Category, id.ID, r.common(0).Encode())
}

// GenreListURL returns the per-category genre reference list URL.
func (r *Routes) GenreListURL(cat catalog.Category) string {
	return fmt.Sprintf("%s/genre/%s/list?%s",
		r.baseURL, cat, r.common(0).Encode())
}
