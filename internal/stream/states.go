package stream

import "fmt"

// State is the sealed lifecycle state of one filter session. Transitions
// are driven solely by the coordinator:
//
//	Idle -> LoadingInitial
//	LoadingInitial -> Loaded | Empty | Failed
//	Loaded -> LoadingMore | LoadingInitial (refresh)
//	LoadingMore -> Loaded | Exhausted
//	Exhausted, Empty, Failed -> LoadingInitial (filter change or refresh)
//
// Empty is absorbing within a session: once an initial load lands with no
// items, only a new session leaves it. A next-page failure never regresses
// the session; it lands back in Loaded with the stalled flag raised,
// keeping the visible items on screen.
type State interface {
	fmt.Stringer

	isStreamState()
}

// StateIdle is the pre-first-load state of a fresh session.
type StateIdle struct{}

func (StateIdle) isStreamState() {}

func (StateIdle) String() string { return "idle" }

// StateLoadingInitial is an in-flight first page load. Nothing is visible.
type StateLoadingInitial struct{}

func (StateLoadingInitial) isStreamState() {}

func (StateLoadingInitial) String() string { return "loading_initial" }

// StateLoaded has visible items and more potentially available.
type StateLoaded struct {
	// Stalled marks that the most recent next-page or refresh attempt
	// failed. Visible items are intact; a retry may clear it.
	Stalled bool
}

func (StateLoaded) isStreamState() {}

func (s StateLoaded) String() string {
	if s.Stalled {
		return "loaded_stalled"
	}
	return "loaded"
}

// StateLoadingMore has visible items and a next-page load in flight.
type StateLoadingMore struct{}

func (StateLoadingMore) isStreamState() {}

func (StateLoadingMore) String() string { return "loading_more" }

// StateExhausted has visible items and no further pages anywhere.
type StateExhausted struct{}

func (StateExhausted) isStreamState() {}

func (StateExhausted) String() string { return "exhausted" }

// StateEmpty is a completed initial load that produced no items.
type StateEmpty struct{}

func (StateEmpty) isStreamState() {}

func (StateEmpty) String() string { return "empty" }

// StateFailed is a failed initial load. Nothing is visible.
type StateFailed struct {
	// Err is the failure that broke the initial load.
	Err error
}

func (StateFailed) isStreamState() {}

func (StateFailed) String() string { return "failed" }

// hasVisible reports whether the state implies visible items worth
// preserving.
func hasVisible(s State) bool {
	switch s.(type) {
	case StateLoaded, StateLoadingMore, StateExhausted:
		return true
	default:
		return false
	}
}

// loadInFlight reports whether a load owns the session right now.
func loadInFlight(s State) bool {
	switch s.(type) {
	case StateLoadingInitial, StateLoadingMore:
		return true
	default:
		return false
	}
}
