package upstream

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/filter"
)

// DateBounds is a pair of inclusive date bounds derived from a DateWindow.
// Either side may be absent.
type DateBounds struct {
	// From is the inclusive lower bound.
	From fn.Option[time.Time]

	// To is the inclusive upper bound.
	To fn.Option[time.Time]
}

// ResolveWindow converts a date window into absolute inclusive bounds
// relative to now. WindowAllTime resolves to unbounded on both sides.
func ResolveWindow(w filter.DateWindow, now time.Time) DateBounds {
	day := now.Truncate(24 * time.Hour)

	switch w {
	case filter.WindowUpcoming:
		return DateBounds{
			From: fn.Some(day.AddDate(0, 0, 1)),
			To:   fn.None[time.Time](),
		}

	case filter.WindowThisMonth:
		first := time.Date(
			now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location(),
		)
		last := first.AddDate(0, 1, -1)
		return DateBounds{From: fn.Some(first), To: fn.Some(last)}

	case filter.WindowLast30:
		return DateBounds{
			From: fn.Some(day.AddDate(0, 0, -30)),
			To:   fn.Some(day),
		}

	case filter.WindowLast90:
		return DateBounds{
			From: fn.Some(day.AddDate(0, 0, -90)),
			To:   fn.Some(day),
		}

	case filter.WindowThisYear:
		first := time.Date(
			now.Year(), time.January, 1, 0, 0, 0, 0, now.Location(),
		)
		last := time.Date(
			now.Year(), time.December, 31, 0, 0, 0, 0,
			now.Location(),
		)
		return DateBounds{From: fn.Some(first), To: fn.Some(last)}

	default:
		return DateBounds{
			From: fn.None[time.Time](),
			To:   fn.None[time.Time](),
		}
	}
}
