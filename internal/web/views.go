package web

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/roasbeef/marquee/internal/filter"
	"github.com/roasbeef/marquee/internal/stream"
)

// dateLayout is the wire format for calendar dates.
const dateLayout = "2006-01-02"

// optPtr converts an option into a nullable JSON field.
func optPtr[T any](o fn.Option[T]) *T {
	var p *T
	o.WhenSome(func(v T) {
		p = &v
	})
	return p
}

// optDatePtr converts a date option into a nullable wire date.
func optDatePtr(o fn.Option[time.Time]) *string {
	var p *string
	o.WhenSome(func(t time.Time) {
		s := t.Format(dateLayout)
		p = &s
	})
	return p
}

// APIItem is the JSON view of a list item.
type APIItem struct {
	Category    string   `json:"category"`
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	PosterRef   string   `json:"poster_ref,omitempty"`
	BackdropRef string   `json:"backdrop_ref,omitempty"`
	Synopsis    string   `json:"synopsis,omitempty"`
	PrimaryDate *string  `json:"primary_date,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	ScoreVotes  *int64   `json:"score_votes,omitempty"`
	GenreIDs    []int64  `json:"genre_ids,omitempty"`
	Popularity  *float64 `json:"popularity,omitempty"`
}

func itemView(item catalog.ItemSummary) APIItem {
	return APIItem{
		Category:    item.ID.Category.String(),
		ID:          item.ID.ID,
		Title:       item.Title,
		PosterRef:   item.PosterRef,
		BackdropRef: item.BackdropRef,
		Synopsis:    item.Synopsis,
		PrimaryDate: optDatePtr(item.PrimaryDate),
		Score:       optPtr(item.Score),
		ScoreVotes:  optPtr(item.ScoreVotes),
		GenreIDs:    item.GenreIDs,
		Popularity:  optPtr(item.Popularity),
	}
}

// APITag is the JSON view of a cross-category tag.
type APITag struct {
	Name    string `json:"name"`
	MovieID *int64 `json:"movie_id,omitempty"`
	TVID    *int64 `json:"tv_id,omitempty"`
}

func tagView(tag filter.CrossTag) APITag {
	return APITag{
		Name:    tag.Name,
		MovieID: optPtr(tag.MovieID),
		TVID:    optPtr(tag.TVID),
	}
}

// APIFilter is the JSON view of a browse configuration. The same shape is
// accepted on filter updates.
type APIFilter struct {
	Category string  `json:"category"`
	Sort     string  `json:"sort"`
	Window   string  `json:"window"`
	Cert     *string `json:"cert,omitempty"`
	Tag      *APITag `json:"tag,omitempty"`
}

func filterView(cfg filter.Config) APIFilter {
	view := APIFilter{
		Category: cfg.Category.String(),
		Sort:     cfg.Sort.String(),
		Window:   cfg.Window.String(),
		Cert:     optPtr(cfg.Cert),
	}
	cfg.Tag.WhenSome(func(tag filter.CrossTag) {
		v := tagView(tag)
		view.Tag = &v
	})

	return view
}

// APISnapshot is the JSON view of a stream snapshot.
type APISnapshot struct {
	SessionID string    `json:"session_id"`
	Filter    APIFilter `json:"filter"`
	State     string    `json:"state"`
	Stale     bool      `json:"stale"`
	Items     []APIItem `json:"items"`
}

func snapshotView(snap stream.Snapshot) APISnapshot {
	items := make([]APIItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, itemView(item))
	}

	return APISnapshot{
		SessionID: snap.SessionID.String(),
		Filter:    filterView(snap.Filter),
		State:     snap.State.String(),
		Stale:     snap.Stale,
		Items:     items,
	}
}

// APIDetail is the JSON view of a full item record.
type APIDetail struct {
	Category       string   `json:"category"`
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	Tagline        string   `json:"tagline,omitempty"`
	Synopsis       string   `json:"synopsis,omitempty"`
	PosterRef      string   `json:"poster_ref,omitempty"`
	BackdropRef    string   `json:"backdrop_ref,omitempty"`
	PrimaryDate    *string  `json:"primary_date,omitempty"`
	Score          *float64 `json:"score,omitempty"`
	ScoreVotes     *int64   `json:"score_votes,omitempty"`
	Popularity     *float64 `json:"popularity,omitempty"`
	RuntimeMinutes *int64   `json:"runtime_minutes,omitempty"`
	Genres         []string `json:"genres,omitempty"`
	Homepage       string   `json:"homepage,omitempty"`
	Status         string   `json:"status,omitempty"`
	Stale          bool     `json:"stale"`
}

func detailView(detail *catalog.Detail, stale bool) APIDetail {
	return APIDetail{
		Category:       detail.ID.Category.String(),
		ID:             detail.ID.ID,
		Title:          detail.Title,
		Tagline:        detail.Tagline,
		Synopsis:       detail.Synopsis,
		PosterRef:      detail.PosterRef,
		BackdropRef:    detail.BackdropRef,
		PrimaryDate:    optDatePtr(detail.PrimaryDate),
		Score:          optPtr(detail.Score),
		ScoreVotes:     optPtr(detail.ScoreVotes),
		Popularity:     optPtr(detail.Popularity),
		RuntimeMinutes: optPtr(detail.RuntimeMinutes),
		Genres:         detail.Genres,
		Homepage:       detail.Homepage,
		Status:         detail.Status,
		Stale:          stale,
	}
}

func parseCategory(name string) (filter.CategoryFilter, error) {
	switch name {
	case "", "all":
		return filter.CategoryAll, nil
	case "movies":
		return filter.CategoryMovies, nil
	case "tv":
		return filter.CategoryTV, nil
	default:
		return 0, fmt.Errorf("unknown category %q", name)
	}
}

func parseSort(name string) (filter.SortMode, error) {
	switch name {
	case "", "trending":
		return filter.SortTrending, nil
	case "popularity":
		return filter.SortPopularity, nil
	case "date_desc":
		return filter.SortDateDesc, nil
	case "date_asc":
		return filter.SortDateAsc, nil
	case "score_desc":
		return filter.SortScoreDesc, nil
	case "score_asc":
		return filter.SortScoreAsc, nil
	default:
		return 0, fmt.Errorf("unknown sort %q", name)
	}
}

func parseWindow(name string) (filter.DateWindow, error) {
	switch name {
	case "", "all_time":
		return filter.WindowAllTime, nil
	case "upcoming":
		return filter.WindowUpcoming, nil
	case "this_month":
		return filter.WindowThisMonth, nil
	case "last_30":
		return filter.WindowLast30, nil
	case "last_90":
		return filter.WindowLast90, nil
	case "this_year":
		return filter.WindowThisYear, nil
	default:
		return 0, fmt.Errorf("unknown window %q", name)
	}
}

func parseItemCategory(name string) (catalog.Category, error) {
	switch name {
	case "movie":
		return catalog.CategoryMovie, nil
	case "tv":
		return catalog.CategoryTV, nil
	default:
		return 0, fmt.Errorf("unknown category %q", name)
	}
}

// parseFilter converts an API filter into a configuration, applying each
// field through the invariant-preserving mutators.
func parseFilter(view APIFilter) (filter.Config, error) {
	cat, err := parseCategory(view.Category)
	if err != nil {
		return filter.Config{}, err
	}

	sort, err := parseSort(view.Sort)
	if err != nil {
		return filter.Config{}, err
	}

	window, err := parseWindow(view.Window)
	if err != nil {
		return filter.Config{}, err
	}

	cfg := filter.Default().
		WithCategory(cat).
		WithWindow(window)

	if view.Tag != nil {
		tag := filter.CrossTag{
			Name:    view.Tag.Name,
			MovieID: fn.None[int64](),
			TVID:    fn.None[int64](),
		}
		if view.Tag.MovieID != nil {
			tag.MovieID = fn.Some(*view.Tag.MovieID)
		}
		if view.Tag.TVID != nil {
			tag.TVID = fn.Some(*view.Tag.TVID)
		}
		if tag.MovieID.IsNone() && tag.TVID.IsNone() {
			return filter.Config{}, fmt.Errorf("tag %q has no "+
				"genre IDs", tag.Name)
		}

		cfg = cfg.WithTag(fn.Some(tag))
	}

	if view.Cert != nil {
		cfg = cfg.WithCert(fn.Some(*view.Cert))
	}

	// Sort goes last so requests that pair trending with active filters
	// degrade the same way interactive mutation does.
	return cfg.WithSort(sort), nil
}
