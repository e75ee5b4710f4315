package stream

import "github.com/roasbeef/marquee/internal/catalog"

// defaultSeenCap bounds the dedup memory. Past the cap the oldest
// identities are forgotten, so an extremely long scroll can readmit an
// item rather than grow without bound.
const defaultSeenCap = 500

// SeenSet tracks item identities already admitted to the visible stream,
// evicting in insertion order once full. Not safe for concurrent use; the
// coordinator owns it.
type SeenSet struct {
	cap   int
	set   map[catalog.ItemID]struct{}
	order []catalog.ItemID
}

// NewSeenSet creates a set bounded at cap identities. Non-positive caps
// select the default.
func NewSeenSet(cap int) *SeenSet {
	if cap <= 0 {
		cap = defaultSeenCap
	}

	return &SeenSet{
		cap: cap,
		set: make(map[catalog.ItemID]struct{}, cap),
	}
}

// Admit records the identity and reports whether it was new. Already-seen
// identities report false and change nothing.
func (s *SeenSet) Admit(id catalog.ItemID) bool {
	if _, ok := s.set[id]; ok {
		return false
	}

	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.set, oldest)
	}

	s.set[id] = struct{}{}
	s.order = append(s.order, id)

	return true
}

// Len reports the tracked identity count.
func (s *SeenSet) Len() int {
	return len(s.set)
}
