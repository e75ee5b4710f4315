// Package stream maintains the merged, deduplicated, paginated item
// stream behind the catalog grid. A single coordinator actor owns the
// session state: per-feed page cursors, lookahead buffers, the seen set,
// and the visible item list. Fetches run off-actor and report back as
// messages, fenced by a per-session ID so a filter change cleanly orphans
// every load it cancelled.
package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/baselib/actor"
	"github.com/roasbeef/marquee/internal/catalog"
	"github.com/roasbeef/marquee/internal/fetcher"
	"github.com/roasbeef/marquee/internal/filter"
)

const (
	// defaultDebounce is how long next-page triggers coalesce before
	// the load starts.
	defaultDebounce = 300 * time.Millisecond

	// defaultLoadMoreThreshold is how close to the end of the visible
	// list the caller must be before a next-page load triggers.
	defaultLoadMoreThreshold = 3

	// defaultLookaheadTarget is how many merged items the coordinator
	// keeps buffered beyond the visible list.
	defaultLookaheadTarget = 40

	// emitBatch is how many items one load goal releases into the
	// visible list.
	emitBatch = 20

	// maxRoundsPerLoad bounds fetch rounds per load goal, so a feed of
	// wall-to-wall duplicates cannot spin the coordinator forever.
	maxRoundsPerLoad = 6
)

// Config assembles a coordinator.
type Config struct {
	// Fetcher runs the page requests.
	Fetcher *fetcher.Fetcher

	// Debounce is the next-page trigger coalescing window.
	Debounce time.Duration

	// LoadMoreThreshold is the rows-from-end trigger distance.
	LoadMoreThreshold int

	// LookaheadTarget is the buffered-item goal beyond the visible
	// list.
	LookaheadTarget int

	// SeenCap bounds the dedup set.
	SeenCap int

	// OnUpdate, when set, receives a snapshot after every observable
	// change. Called from the coordinator goroutine; keep it cheap.
	OnUpdate func(Snapshot)
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = defaultDebounce
	}
	if c.LoadMoreThreshold <= 0 {
		c.LoadMoreThreshold = defaultLoadMoreThreshold
	}
	if c.LookaheadTarget <= 0 {
		c.LookaheadTarget = defaultLookaheadTarget
	}
	if c.SeenCap <= 0 {
		c.SeenCap = defaultSeenCap
	}

	return c
}

// Snapshot is one observable point-in-time view of the stream.
type Snapshot struct {
	// SessionID identifies the filter session the view belongs to.
	SessionID uuid.UUID

	// Filter is the session's configuration.
	Filter filter.Config

	// Items is the visible item list, in merge order.
	Items []catalog.ItemSummary

	// State is the session lifecycle state.
	State State

	// Stale marks that some visible data came from expired cache
	// entries served while upstream was unreachable.
	Stale bool
}

// coordMsg is the sealed message union of the coordinator actor.
type coordMsg interface {
	actor.Message

	isCoordMsg()
}

type setFilterMsg struct {
	actor.BaseMessage

	cfg filter.Config
}

func (setFilterMsg) MessageType() string { return "stream.set_filter" }
func (setFilterMsg) isCoordMsg()         {}

type loadMoreTickMsg struct {
	actor.BaseMessage

	gen int
}

func (loadMoreTickMsg) MessageType() string { return "stream.load_more_tick" }
func (loadMoreTickMsg) isCoordMsg()         {}

type loadInitialMsg struct {
	actor.BaseMessage
}

func (loadInitialMsg) MessageType() string { return "stream.load_initial" }
func (loadInitialMsg) isCoordMsg()         {}

type loadMoreMsg struct {
	actor.BaseMessage

	visibleIndex int
}

func (loadMoreMsg) MessageType() string { return "stream.load_more" }
func (loadMoreMsg) isCoordMsg()         {}

type refreshMsg struct {
	actor.BaseMessage

	bypass bool
}

func (refreshMsg) MessageType() string { return "stream.refresh" }
func (refreshMsg) isCoordMsg()         {}

type snapshotMsg struct {
	actor.BaseMessage
}

func (snapshotMsg) MessageType() string { return "stream.snapshot" }
func (snapshotMsg) isCoordMsg()         {}

type loadLandedMsg struct {
	actor.BaseMessage

	session uuid.UUID
	results []fetcher.PageResult
	err     error
}

func (loadLandedMsg) MessageType() string { return "stream.load_landed" }
func (loadLandedMsg) isCoordMsg()         {}

// cursor tracks pagination progress of one feed.
type cursor struct {
	nextPage  int
	exhausted bool
}

// session is the complete state of one filter configuration's stream.
type session struct {
	id    uuid.UUID
	cfg   filter.Config
	feeds []fetcher.Feed

	cursors map[fetcher.Feed]*cursor
	buffers map[fetcher.Feed][]catalog.ItemSummary
	seen    *SeenSet

	visible []catalog.ItemSummary
	state   State
	stale   bool
	stalled bool

	// emitGoal is how many more items the current load goal wants
	// visible. Zero means no demand.
	emitGoal int

	// rounds counts fetch rounds spent on the current load goal.
	rounds int

	// inFlight marks an outstanding fetch round.
	inFlight bool

	// bypass forces every page this session pulls past the fresh-cache
	// read. Set on sessions born from a bypassing refresh.
	bypass bool

	// prev is the superseded session a refresh falls back to on
	// failure. Nil outside refreshes.
	prev *session

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(cfg filter.Config, seenCap int) *session {
	ctx, cancel := context.WithCancel(context.Background())

	feeds := fetcher.FeedsFor(cfg)
	s := &session{
		id:      uuid.New(),
		cfg:     cfg,
		feeds:   feeds,
		cursors: make(map[fetcher.Feed]*cursor, len(feeds)),
		buffers: make(map[fetcher.Feed][]catalog.ItemSummary,
			len(feeds)),
		seen:   NewSeenSet(seenCap),
		state:  StateIdle{},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, feed := range feeds {
		s.cursors[feed] = &cursor{nextPage: 1}
	}

	return s
}

func (s *session) allExhausted() bool {
	for _, cur := range s.cursors {
		if !cur.exhausted {
			return false
		}
	}

	return true
}

func (s *session) buffered() int {
	total := 0
	for _, buf := range s.buffers {
		total += len(buf)
	}

	return total
}

// canPop reports whether popping the merge minimum is safe. With several
// live feeds every non-exhausted feed must have a buffered item; otherwise
// an unseen item from the starved feed could belong before anything
// currently buffered.
func (s *session) canPop() bool {
	nonEmpty := 0
	for _, feed := range s.feeds {
		if len(s.buffers[feed]) > 0 {
			nonEmpty++
			continue
		}
		if !s.cursors[feed].exhausted {
			return false
		}
	}

	return nonEmpty > 0
}

// popMin removes and returns the next item in merge order. Single-feed
// sessions preserve upstream order exactly; multi-feed sessions take the
// comparator minimum of the buffer heads.
func (s *session) popMin() catalog.ItemSummary {
	var best fetcher.Feed
	found := false
	for _, feed := range s.feeds {
		buf := s.buffers[feed]
		if len(buf) == 0 {
			continue
		}
		if !found || Less(s.cfg.Sort, buf[0], s.buffers[best][0]) {
			best = feed
			found = true
		}
	}

	item := s.buffers[best][0]
	s.buffers[best] = s.buffers[best][1:]

	return item
}

// coordinator is the actor behavior.
type coordinator struct {
	cfg  Config
	self actor.TellOnlyRef[coordMsg]

	sess *session

	// morePending marks an armed next-page debounce timer. moreGen
	// fences stale timer ticks and moreSession ties the armed trigger
	// to the session that requested it.
	morePending bool
	moreGen     int
	moreSession uuid.UUID
}

// Receive implements actor.Behavior.
func (c *coordinator) Receive(ctx context.Context,
	msg coordMsg) fn.Result[Snapshot] {

	switch m := msg.(type) {
	case setFilterMsg:
		c.applyFilter(ctx, m.cfg)

	case loadMoreTickMsg:
		c.fireLoadMore(ctx, m.gen)

	case loadInitialMsg:
		// Also serves as the retry entry point for failed or empty
		// sessions.
		if !loadInFlight(c.sess.state) && !hasVisible(c.sess.state) {
			c.startGoal(ctx, emitBatch)
		}

	case loadMoreMsg:
		c.maybeLoadMore(ctx, m.visibleIndex)

	case refreshMsg:
		c.startRefresh(ctx, m.bypass)

	case loadLandedMsg:
		c.handleLanded(ctx, m)
	}

	return fn.Ok(c.snapshot())
}

// applyFilter commits a configuration change, tearing down the current
// session and starting a fresh load.
func (c *coordinator) applyFilter(ctx context.Context, cfg filter.Config) {
	if cfg == c.sess.cfg {
		return
	}

	log.InfoS(ctx, "Applying filter change", "filter", cfg.String())

	if c.sess.prev != nil {
		c.sess.prev.cancel()
	}
	c.sess.cancel()
	c.sess = newSession(cfg, c.cfg.SeenCap)
	c.startGoal(ctx, emitBatch)
}

// nearEnd reports whether the next-page trigger conditions hold: content
// on screen, no load outstanding, pages left to fetch, and the caller
// within the threshold of the end of the visible list.
func (c *coordinator) nearEnd(visibleIndex int) bool {
	s := c.sess
	if loadInFlight(s.state) || !hasVisible(s.state) {
		return false
	}
	if _, exhausted := s.state.(StateExhausted); exhausted {
		return false
	}

	remaining := len(s.visible) - 1 - visibleIndex
	return remaining <= c.cfg.LoadMoreThreshold
}

// maybeLoadMore arms the next-page debounce when the caller is near the
// end of the visible list. Repeated triggers while the timer is armed
// collapse into the one armed load.
func (c *coordinator) maybeLoadMore(ctx context.Context,
	visibleIndex int) {

	if !c.nearEnd(visibleIndex) {
		return
	}

	s := c.sess
	if c.morePending && c.moreSession == s.id {
		return
	}
	c.morePending = true
	c.moreSession = s.id
	c.moreGen++

	gen := c.moreGen
	self := c.self
	time.AfterFunc(c.cfg.Debounce, func() {
		self.Tell(context.Background(), loadMoreTickMsg{gen: gen})
	})

	log.DebugS(ctx, "Next-page load armed", "session", s.id,
		"visible_index", visibleIndex)
}

// fireLoadMore runs an armed next-page trigger once its debounce lapses.
// The stream may have moved on while the timer ran, so the trigger
// conditions are rechecked against the current session.
func (c *coordinator) fireLoadMore(ctx context.Context, gen int) {
	if !c.morePending || gen != c.moreGen {
		return
	}
	c.morePending = false

	s := c.sess
	if s.id != c.moreSession {
		return
	}
	if !c.nearEnd(len(s.visible) - 1) {
		return
	}

	c.startGoal(ctx, emitBatch)
}

// startRefresh replays the current configuration from page one while
// keeping the old session on hand: its items stay visible until new data
// lands, and a failed refresh falls back to it untouched.
func (c *coordinator) startRefresh(ctx context.Context, bypass bool) {
	old := c.sess
	if loadInFlight(old.state) {
		return
	}

	log.InfoS(ctx, "Refreshing stream", "filter", old.cfg.String(),
		"bypass", bypass)

	fresh := newSession(old.cfg, c.cfg.SeenCap)
	fresh.bypass = bypass
	fresh.prev = old
	c.sess = fresh
	c.startGoal(ctx, emitBatch)
}

// startGoal sets a new emit goal and drives the session toward it. A
// failed state is dropped here so the retry can be recomputed from data.
func (c *coordinator) startGoal(ctx context.Context, goal int) {
	s := c.sess
	if _, failed := s.state.(StateFailed); failed {
		s.state = StateIdle{}
	}
	s.emitGoal = goal
	s.rounds = 0
	c.advance(ctx)
}

// advance is the single driver: it drains buffered items toward the emit
// goal, starts a fetch round when the buffers cannot satisfy demand or the
// lookahead target, recomputes the lifecycle state, and publishes the
// result.
func (c *coordinator) advance(ctx context.Context) {
	s := c.sess

	// Drain what the buffers can safely give.
	for s.emitGoal > 0 && s.canPop() {
		item := s.popMin()
		if !s.seen.Admit(item.ID) {
			continue
		}

		s.visible = append(s.visible, item)
		s.emitGoal--
	}

	// A refresh commits once new data is on screen.
	if s.prev != nil && len(s.visible) > 0 {
		s.prev.cancel()
		s.prev = nil
	}

	needFetch := !s.inFlight && !s.allExhausted() &&
		(s.emitGoal > 0 || s.buffered() < c.cfg.LookaheadTarget)
	if needFetch && s.rounds >= maxRoundsPerLoad {
		log.WarnS(ctx, "Load goal exceeded round budget", nil,
			"session", s.id, "rounds", s.rounds)
		s.emitGoal = 0
		needFetch = false
	}

	if needFetch {
		c.startRound(ctx)
	}

	c.recomputeState()
	c.publish()
}

// startRound fetches the next page of every non-exhausted feed.
func (c *coordinator) startRound(ctx context.Context) {
	s := c.sess

	pages := make(map[fetcher.Feed]int)
	for feed, cur := range s.cursors {
		if !cur.exhausted {
			pages[feed] = cur.nextPage
		}
	}
	if len(pages) == 0 {
		return
	}

	s.inFlight = true
	s.rounds++

	log.DebugS(ctx, "Starting fetch round", "session", s.id,
		"round", s.rounds, "feeds", len(pages))

	sessID := s.id
	loadCtx := s.ctx
	self := c.self
	pol := fetcher.Policy{AllowExpired: true, BypassCache: s.bypass}
	go func() {
		results, err := c.cfg.Fetcher.FetchPages(
			loadCtx, s.cfg, pages, pol,
		)
		self.Tell(context.Background(), loadLandedMsg{
			session: sessID,
			results: results,
			err:     err,
		})
	}()
}

// handleLanded folds a fetch round's outcome into the session. Results
// from superseded sessions are dropped on the floor.
func (c *coordinator) handleLanded(ctx context.Context, m loadLandedMsg) {
	s := c.sess
	if m.session != s.id {
		log.TraceS(ctx, "Dropping orphaned load result",
			"session", m.session)
		return
	}
	s.inFlight = false

	if m.err != nil {
		c.handleLoadFailure(ctx, m.err)
		return
	}

	s.stalled = false
	for _, res := range m.results {
		cur := s.cursors[res.Feed]
		cur.nextPage++
		if !res.Page.HasMore() {
			cur.exhausted = true
		}
		if res.Stale {
			s.stale = true
		}

		s.buffers[res.Feed] = append(
			s.buffers[res.Feed], res.Page.Items...,
		)
	}

	c.advance(ctx)
}

// handleLoadFailure applies the visible-content-is-sacred policy: a
// failure with items on screen stalls the session, a failed refresh falls
// back to the superseded session, and only a failed first load surfaces as
// a failed state.
func (c *coordinator) handleLoadFailure(ctx context.Context, err error) {
	s := c.sess
	s.emitGoal = 0

	log.ErrorS(ctx, "Load failed", err, "session", s.id,
		"visible", len(s.visible))

	switch {
	case s.prev != nil:
		s.cancel()
		c.sess = s.prev
		c.sess.stalled = true
		c.sess.state = StateLoaded{Stalled: true}

	case len(s.visible) > 0:
		s.stalled = true
		s.state = StateLoaded{Stalled: true}

	default:
		s.state = StateFailed{Err: err}
	}

	c.publish()
}

// recomputeState derives the lifecycle state from the session's data.
// Failed is set only by handleLoadFailure and never recomputed here.
func (c *coordinator) recomputeState() {
	s := c.sess
	if _, failed := s.state.(StateFailed); failed {
		return
	}

	done := s.allExhausted() && s.buffered() == 0

	switch {
	case len(s.visible) == 0 && done:
		s.state = StateEmpty{}

	case len(s.visible) == 0 && s.inFlight:
		s.state = StateLoadingInitial{}

	case len(s.visible) == 0:
		s.state = StateIdle{}

	case done:
		s.state = StateExhausted{}

	case s.emitGoal > 0 && s.inFlight:
		s.state = StateLoadingMore{}

	default:
		s.state = StateLoaded{Stalled: s.stalled}
	}
}

// OnStop cancels the live session's loads during actor shutdown.
func (c *coordinator) OnStop(context.Context) error {
	if c.sess.prev != nil {
		c.sess.prev.cancel()
	}
	c.sess.cancel()

	return nil
}

// snapshot renders the observable view. During a refresh with nothing new
// on screen yet, the superseded session's items remain visible.
func (c *coordinator) snapshot() Snapshot {
	s := c.sess

	items := s.visible
	state := s.state
	stale := s.stale
	if s.prev != nil && len(s.visible) == 0 {
		items = s.prev.visible
		stale = s.prev.stale
		if !loadInFlight(state) {
			state = s.prev.state
		}
	}

	out := make([]catalog.ItemSummary, len(items))
	copy(out, items)

	return Snapshot{
		SessionID: s.id,
		Filter:    s.cfg,
		Items:     out,
		State:     state,
		Stale:     stale,
	}
}

func (c *coordinator) publish() {
	if c.cfg.OnUpdate != nil {
		c.cfg.OnUpdate(c.snapshot())
	}
}

// Coordinator is the public face of the stream actor.
type Coordinator struct {
	actor *actor.Actor[coordMsg, Snapshot]
}

// New creates and starts a coordinator with an idle default session.
func New(cfg Config) *Coordinator {
	cfg = cfg.withDefaults()

	behavior := &coordinator{
		cfg:  cfg,
		sess: newSession(filter.Default(), cfg.SeenCap),
	}

	a := actor.NewActor(actor.Config[coordMsg, Snapshot]{
		ID:          "stream-coordinator",
		Behavior:    behavior,
		MailboxSize: 64,
	})
	behavior.self = a.TellRef()
	a.Start()

	return &Coordinator{actor: a}
}

func (c *Coordinator) ask(ctx context.Context,
	msg coordMsg) (Snapshot, error) {

	return c.actor.Ref().Ask(ctx, msg).Await(ctx).Unpack()
}

// SetFilter applies a configuration change, cancelling the current
// session's loads and starting a fresh one.
func (c *Coordinator) SetFilter(ctx context.Context,
	cfg filter.Config) (Snapshot, error) {

	return c.ask(ctx, setFilterMsg{cfg: cfg})
}

// LoadInitial starts the first load of the current session if nothing is
// loaded or in flight.
func (c *Coordinator) LoadInitial(ctx context.Context) (Snapshot, error) {
	return c.ask(ctx, loadInitialMsg{})
}

// LoadMoreIfNeeded arms a debounced next-page load when visibleIndex is
// within the threshold of the end of the visible list. Repeated calls
// inside the window collapse into one load.
func (c *Coordinator) LoadMoreIfNeeded(ctx context.Context,
	visibleIndex int) (Snapshot, error) {

	return c.ask(ctx, loadMoreMsg{visibleIndex: visibleIndex})
}

// Refresh reloads the current configuration from the first page, keeping
// the current items visible until replacements land. With bypass set the
// reload skips fresh cache entries and revalidates against upstream.
func (c *Coordinator) Refresh(ctx context.Context, bypass bool) (Snapshot,
	error) {

	return c.ask(ctx, refreshMsg{bypass: bypass})
}

// Snapshot returns the current observable view without side effects.
func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	return c.ask(ctx, snapshotMsg{})
}

// Stop terminates the coordinator and cancels any in-flight loads.
func (c *Coordinator) Stop() {
	c.actor.Stop()
}
