package upstream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/catalog"
)

// Page is one decoded page of a list endpoint. TotalPages drives the
// has-more decision; Unsupported counts results whose media type this
// client does not model, which the combined trending feed mixes in.
type Page struct {
	// Page is the 1-based page index echoed by upstream.
	Page int

	// TotalPages is the total page count for the request.
	TotalPages int

	// TotalResults is the total item count across all pages.
	TotalResults int

	// Items are the decoded summaries, in upstream order.
	Items []catalog.ItemSummary

	// Unsupported is the number of results discarded for having an
	// unrecognized media type.
	Unsupported int
}

// HasMore reports whether another page exists after this one.
func (p *Page) HasMore() bool {
	return p.Page < p.TotalPages
}

// envelope is the wire shape shared by every paginated endpoint. Results
// are kept raw so the per-item discriminator can be inspected before
// committing to a shape.
type envelope struct {
	Page         int               `json:"page"`
	TotalPages   int               `json:"total_pages"`
	TotalResults int               `json:"total_results"`
	Results      []json.RawMessage `json:"results"`
}

// listItem is the union of movie and TV list fields. Movies carry title
// and release_date, TV carries name and first_air_date; everything else is
// shared. Pointers distinguish absent fields from zero values.
type listItem struct {
	MediaType    string   `json:"media_type"`
	ID           int64    `json:"id"`
	Title        *string  `json:"title"`
	Name         *string  `json:"name"`
	ReleaseDate  *string  `json:"release_date"`
	FirstAirDate *string  `json:"first_air_date"`
	PosterPath   *string  `json:"poster_path"`
	BackdropPath *string  `json:"backdrop_path"`
	Overview     *string  `json:"overview"`
	VoteAverage  *float64 `json:"vote_average"`
	VoteCount    *int64   `json:"vote_count"`
	GenreIDs     []int64  `json:"genre_ids"`
	Popularity   *float64 `json:"popularity"`
}

// decodeErr wraps a JSON failure into the decoding error kind.
func decodeErr(err error) error {
	return NewError(KindDecoding, fmt.Errorf("decode response: %w", err))
}

// optString converts an absent-or-empty string pointer to a plain string.
func optString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// optDate parses an upstream date field. Upstream sends missing dates as
// either an absent field or an empty string; both map to None.
func optDate(s *string) fn.Option[time.Time] {
	if s == nil || *s == "" {
		return fn.None[time.Time]()
	}

	t, err := time.Parse(dateFormat, *s)
	if err != nil {
		return fn.None[time.Time]()
	}

	return fn.Some(t)
}

// optScore converts the vote pair to optional score fields. A zero vote
// count means the average is a filler zero, not a real score.
func optScore(avg *float64,
	count *int64) (fn.Option[float64], fn.Option[int64]) {

	if count == nil || *count == 0 {
		return fn.None[float64](), fn.None[int64]()
	}

	score := fn.None[float64]()
	if avg != nil {
		score = fn.Some(*avg)
	}

	return score, fn.Some(*count)
}

// optFloat converts an optional float field.
func optFloat(f *float64) fn.Option[float64] {
	if f == nil {
		return fn.None[float64]()
	}

	return fn.Some(*f)
}

// resolveCategory determines the category of one list result. The
// media_type discriminator wins when present; single-category endpoints
// omit it, so the request's own category acts as the fallback. None means
// the result is unsupported and must be discarded.
func resolveCategory(discriminator string,
	fallback fn.Option[catalog.Category]) fn.Option[catalog.Category] {

	switch discriminator {
	case "movie":
		return fn.Some(catalog.CategoryMovie)
	case "tv":
		return fn.Some(catalog.CategoryTV)
	case "":
		return fallback
	default:
		return fn.None[catalog.Category]()
	}
}

// toSummary converts a decoded list item into the domain summary for the
// given category.
func (li *listItem) toSummary(cat catalog.Category) catalog.ItemSummary {
	title := optString(li.Title)
	date := optDate(li.ReleaseDate)
	if cat == catalog.CategoryTV {
		title = optString(li.Name)
		date = optDate(li.FirstAirDate)
	}

	score, votes := optScore(li.VoteAverage, li.VoteCount)

	return catalog.ItemSummary{
		ID:          catalog.ItemID{Category: cat, ID: li.ID},
		Title:       title,
		PosterRef:   optString(li.PosterPath),
		BackdropRef: optString(li.BackdropPath),
		Synopsis:    optString(li.Overview),
		PrimaryDate: date,
		Score:       score,
		ScoreVotes:  votes,
		GenreIDs:    li.GenreIDs,
		Popularity:  optFloat(li.Popularity),
	}
}

// DecodeListPage decodes one page of a list endpoint. The fallback
// category applies to results without a media_type discriminator, which is
// every result of single-category endpoints; pass None for the combined
// trending feed, where a missing discriminator marks the result
// unsupported. Results with an unknown discriminator are dropped and
// counted, never treated as an error.
func DecodeListPage(data []byte,
	fallback fn.Option[catalog.Category]) (*Page, error) {

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, decodeErr(err)
	}

	page := &Page{
		Page:         env.Page,
		TotalPages:   env.TotalPages,
		TotalResults: env.TotalResults,
		Items:        make([]catalog.ItemSummary, 0, len(env.Results)),
	}

	for _, raw := range env.Results {
		var li listItem
		if err := json.Unmarshal(raw, &li); err != nil {
			return nil, decodeErr(err)
		}

		cat := resolveCategory(li.MediaType, fallback)
		if cat.IsNone() {
			page.Unsupported++
			continue
		}

		page.Items = append(page.Items,
			li.toSummary(cat.UnwrapOr(catalog.CategoryMovie)))
	}

	return page, nil
}

// detailItem is the union of movie and TV detail fields.
type detailItem struct {
	ID             int64    `json:"id"`
	Title          *string  `json:"title"`
	Name           *string  `json:"name"`
	Tagline        *string  `json:"tagline"`
	Overview       *string  `json:"overview"`
	PosterPath     *string  `json:"poster_path"`
	BackdropPath   *string  `json:"backdrop_path"`
	ReleaseDate    *string  `json:"release_date"`
	FirstAirDate   *string  `json:"first_air_date"`
	VoteAverage    *float64 `json:"vote_average"`
	VoteCount      *int64   `json:"vote_count"`
	Popularity     *float64 `json:"popularity"`
	Runtime        *int64   `json:"runtime"`
	EpisodeRuntime []int64  `json:"episode_run_time"`
	Genres         []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
	Homepage *string `json:"homepage"`
	Status   *string `json:"status"`
}

// DecodeDetail decodes a single-item detail response for the given
// identity.
func DecodeDetail(data []byte, id catalog.ItemID) (*catalog.Detail, error) {
	var di detailItem
	if err := json.Unmarshal(data, &di); err != nil {
		return nil, decodeErr(err)
	}

	title := optString(di.Title)
	date := optDate(di.ReleaseDate)
	runtime := fn.None[int64]()
	if di.Runtime != nil && *di.Runtime > 0 {
		runtime = fn.Some(*di.Runtime)
	}

	if id.Category == catalog.CategoryTV {
		title = optString(di.Name)
		date = optDate(di.FirstAirDate)

		// TV reports a per-episode runtime list; the first entry is
		// the typical one.
		if len(di.EpisodeRuntime) > 0 && di.EpisodeRuntime[0] > 0 {
			runtime = fn.Some(di.EpisodeRuntime[0])
		}
	}

	genres := make([]string, 0, len(di.Genres))
	for _, g := range di.Genres {
		genres = append(genres, g.Name)
	}

	score, votes := optScore(di.VoteAverage, di.VoteCount)

	return &catalog.Detail{
		ID:             id,
		Title:          title,
		Tagline:        optString(di.Tagline),
		Synopsis:       optString(di.Overview),
		PosterRef:      optString(di.PosterPath),
		BackdropRef:    optString(di.BackdropPath),
		PrimaryDate:    date,
		Score:          score,
		ScoreVotes:     votes,
		Popularity:     optFloat(di.Popularity),
		RuntimeMinutes: runtime,
		Genres:         genres,
		Homepage:       optString(di.Homepage),
		Status:         optString(di.Status),
	}, nil
}

// DecodeGenreList decodes a per-category genre reference response.
func DecodeGenreList(data []byte) ([]catalog.Genre, error) {
	var wire struct {
		Genres []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"genres"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, decodeErr(err)
	}

	genres := make([]catalog.Genre, 0, len(wire.Genres))
	for _, g := range wire.Genres {
		genres = append(genres, catalog.Genre{ID: g.ID, Name: g.Name})
	}

	return genres, nil
}
