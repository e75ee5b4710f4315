// Package netclient provides the single chokepoint for upstream HTTP
// traffic: every request passes through one actor that collapses duplicate
// in-flight URLs, bounds concurrency with a weighted semaphore, and applies
// a shared exponential backoff when upstream is failing. Each fetch makes
// one physical attempt and surfaces failures typed; retry policy belongs
// to the callers.
package netclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/baselib/actor"
	"github.com/roasbeef/marquee/internal/upstream"
	"golang.org/x/sync/semaphore"
)

const (
	// defaultMaxConcurrent bounds simultaneous upstream requests.
	defaultMaxConcurrent = 4

	// defaultDedupWindow is how long a completed request remains
	// joinable. Identical URLs asked within this window of the first
	// request share one physical call and one result.
	defaultDedupWindow = 500 * time.Millisecond

	// defaultBackoffBase is the delay after the first retryable failure.
	defaultBackoffBase = time.Second

	// defaultBackoffMax caps the doubled delay.
	defaultBackoffMax = 30 * time.Second

	// defaultRequestTimeout bounds one physical request end to end.
	defaultRequestTimeout = 15 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 4 << 20
)

// Config tunes the client. Zero values select the defaults above.
type Config struct {
	// HTTPClient performs the physical requests. Defaults to a client
	// with no timeout of its own; the per-request timeout governs.
	HTTPClient *http.Client

	// MaxConcurrent bounds simultaneous physical requests.
	MaxConcurrent int64

	// DedupWindow is the joinable lifetime of a request keyed by URL.
	DedupWindow time.Duration

	// BackoffBase is the first retry delay.
	BackoffBase time.Duration

	// BackoffMax caps the retry delay.
	BackoffMax time.Duration

	// RequestTimeout bounds one physical attempt.
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = defaultDedupWindow
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = defaultBackoffMax
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}

	return c
}

// netMsg is the sealed message union of the dispatch actor.
type netMsg interface {
	actor.Message

	isNetMsg()
}

// fetchMsg asks for the body of one URL. The caller's context rides along
// so the dispatcher can abandon the physical call once every caller
// waiting on it has given up.
type fetchMsg struct {
	actor.BaseMessage

	url string
	ctx context.Context
}

func (fetchMsg) MessageType() string { return "netclient.fetch" }
func (fetchMsg) isNetMsg()           {}

// leaveMsg reports that one joiner of an in-flight URL stopped waiting.
type leaveMsg struct {
	actor.BaseMessage

	url     string
	started time.Time
}

func (leaveMsg) MessageType() string { return "netclient.leave" }
func (leaveMsg) isNetMsg()           {}

// settledMsg reports that the physical call for a URL finished.
type settledMsg struct {
	actor.BaseMessage

	url     string
	started time.Time

	// failed marks an errored call. Only successes stay joinable for
	// the dedup window; a caller retrying a failure deserves a fresh
	// physical call.
	failed bool
}

func (settledMsg) MessageType() string { return "netclient.settled" }
func (settledMsg) isNetMsg()           {}

// expireMsg removes a completed entry once its dedup window lapses.
type expireMsg struct {
	actor.BaseMessage

	url     string
	started time.Time
}

func (expireMsg) MessageType() string { return "netclient.expire" }
func (expireMsg) isNetMsg()           {}

// flightEntry is one joinable request. Entries stay in the map while the
// call is in flight and, after completion, until the dedup window lapses.
// The entry owns the context its physical call runs under; it is cancelled
// when the joiner count drops to zero before the call settles.
type flightEntry struct {
	promise actor.Promise[[]byte]
	started time.Time
	done    bool

	ctx    context.Context
	cancel context.CancelFunc

	// joiners counts callers still awaiting the result.
	joiners int

	// cancelled marks an entry whose call was abandoned. It is never
	// joinable again.
	cancelled bool

	// settled closes when the physical call finishes, releasing the
	// per-joiner watchers.
	settled chan struct{}
}

// dispatcher is the actor behavior owning the in-flight map. Only the
// actor goroutine touches the map; the physical calls run in their own
// goroutines and report back via Tell.
type dispatcher struct {
	cfg     Config
	sem     *semaphore.Weighted
	backoff *backoffState
	self    actor.TellOnlyRef[netMsg]

	inflight map[string]*flightEntry
}

// Receive implements actor.Behavior. Asks resolve to a future for the
// response body; tells maintain the in-flight map.
func (d *dispatcher) Receive(ctx context.Context,
	msg netMsg) fn.Result[actor.Future[[]byte]] {

	switch m := msg.(type) {
	case fetchMsg:
		return fn.Ok(d.handleFetch(ctx, m))

	case settledMsg:
		d.handleSettled(m)

	case leaveMsg:
		d.handleLeave(ctx, m)

	case expireMsg:
		entry, ok := d.inflight[m.url]
		if ok && entry.started.Equal(m.started) {
			delete(d.inflight, m.url)
		}
	}

	return fn.Ok[actor.Future[[]byte]](nil)
}

func (d *dispatcher) handleFetch(ctx context.Context,
	m fetchMsg) actor.Future[[]byte] {

	url := m.url
	if entry, ok := d.inflight[url]; ok {
		joinable := !entry.cancelled && (!entry.done ||
			time.Since(entry.started) < d.cfg.DedupWindow)
		if joinable {
			log.TraceS(ctx, "Joining in-flight request",
				"url", url)
			d.addJoiner(entry, url, m.ctx)

			return entry.promise.Future()
		}

		delete(d.inflight, url)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	entry := &flightEntry{
		promise: actor.NewPromise[[]byte](),
		started: time.Now(),
		ctx:     runCtx,
		cancel:  cancel,
		settled: make(chan struct{}),
	}
	d.inflight[url] = entry
	d.addJoiner(entry, url, m.ctx)

	log.DebugS(ctx, "Dispatching request", "url", url,
		"in_flight", len(d.inflight))

	go d.run(url, entry)

	return entry.promise.Future()
}

// addJoiner counts one more caller awaiting the entry and watches its
// context so an abandoned wait is reported back to the dispatcher.
func (d *dispatcher) addJoiner(entry *flightEntry, url string,
	joinerCtx context.Context) {

	entry.joiners++

	if entry.done {
		return
	}

	started := entry.started
	settled := entry.settled
	self := d.self
	go func() {
		select {
		case <-joinerCtx.Done():
			self.Tell(context.Background(), leaveMsg{
				url:     url,
				started: started,
			})

		case <-settled:
		}
	}()
}

// handleLeave drops one joiner and abandons the physical call once nobody
// is waiting on it anymore, so the request stops holding a concurrency
// slot.
func (d *dispatcher) handleLeave(ctx context.Context, m leaveMsg) {
	entry, ok := d.inflight[m.url]
	if !ok || !entry.started.Equal(m.started) || entry.done {
		return
	}

	entry.joiners--
	if entry.joiners > 0 {
		return
	}

	log.DebugS(ctx, "Abandoning request with no joiners",
		"url", m.url)

	entry.cancelled = true
	entry.cancel()
}

func (d *dispatcher) handleSettled(m settledMsg) {
	entry, ok := d.inflight[m.url]
	if !ok || !entry.started.Equal(m.started) {
		return
	}
	entry.done = true

	if m.failed {
		delete(d.inflight, m.url)
		return
	}

	remaining := d.cfg.DedupWindow - time.Since(entry.started)
	if remaining <= 0 {
		delete(d.inflight, m.url)
		return
	}

	self := d.self
	time.AfterFunc(remaining, func() {
		self.Tell(context.Background(), expireMsg{
			url:     m.url,
			started: m.started,
		})
	})
}

// run drives the single physical call for one URL off the actor goroutine
// and completes the shared promise with the outcome.
func (d *dispatcher) run(url string, entry *flightEntry) {
	defer entry.cancel()

	body, err := d.attempt(entry.ctx, url)

	// Enqueue the settle before completing the promise: a caller that
	// sees a failure and immediately fetches again must find the entry
	// already dropped, not rejoin the errored result.
	d.self.Tell(context.Background(), settledMsg{
		url:     url,
		started: entry.started,
		failed:  err != nil,
	})

	if err != nil {
		entry.promise.Complete(fn.Err[[]byte](err))
	} else {
		entry.promise.Complete(fn.Ok(body))
	}
	close(entry.settled)
}

// attempt sleeps the shared pre-request backoff delay, makes exactly one
// physical call, and folds the outcome back into the backoff state. The
// client never loop-retries: a retryable failure surfaces to the caller
// with its typed kind, and whether to try again is decided above, where
// the policy lives.
func (d *dispatcher) attempt(ctx context.Context,
	url string) ([]byte, error) {

	if delay := d.backoff.Delay(); delay > 0 {
		log.DebugS(ctx, "Backing off before request",
			"url", url, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, upstream.ClassifyTransport(ctx.Err())
		}
	}

	body, err := d.attemptOne(ctx, url)
	if err == nil {
		d.backoff.Reset()
		return body, nil
	}

	// Only upstream-side failures advance the shared delay; a caller
	// abandoning the request is not upstream's fault.
	var ue *upstream.Error
	if errors.As(err, &ue) && ue.Retryable() {
		d.backoff.Failure(ue.RetryAfter)
		log.WarnS(ctx, "Upstream request failed", err, "url", url)
	}

	return nil, err
}

// attemptOne performs a single physical request under the concurrency
// semaphore.
func (d *dispatcher) attemptOne(ctx context.Context,
	url string) ([]byte, error) {

	ctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, upstream.ClassifyTransport(err)
	}
	defer d.sem.Release(1)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, url, nil,
	)
	if err != nil {
		return nil, upstream.NewError(upstream.KindInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, upstream.ClassifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		return nil, upstream.ClassifyStatus(
			resp.StatusCode, parseRetryAfter(resp),
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, upstream.ClassifyTransport(err)
	}

	return body, nil
}

// parseRetryAfter reads the delay-seconds form of the Retry-After header.
func parseRetryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}

	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}

	return time.Duration(secs) * time.Second
}

// Client is the public face of the dispatch actor.
type Client struct {
	cfg     Config
	actor   *actor.Actor[netMsg, actor.Future[[]byte]]
	offline atomic.Bool
}

// New creates and starts a client.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()

	d := &dispatcher{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		backoff:  newBackoffState(cfg.BackoffBase, cfg.BackoffMax),
		inflight: make(map[string]*flightEntry),
	}

	a := actor.NewActor(actor.Config[netMsg, actor.Future[[]byte]]{
		ID:          "netclient",
		Behavior:    d,
		MailboxSize: 64,
	})
	d.self = a.TellRef()
	a.Start()

	return &Client{cfg: cfg, actor: a}
}

// SetOffline toggles offline mode. While offline every fetch fails fast
// with a no-connection error, leaving callers to fall back to cache.
func (c *Client) SetOffline(offline bool) {
	c.offline.Store(offline)
}

// Offline reports the current offline flag.
func (c *Client) Offline() bool {
	return c.offline.Load()
}

// Fetch returns the response body for the URL, joining an identical
// in-flight request when one exists.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if c.offline.Load() {
		return nil, upstream.NewError(
			upstream.KindNoConnection,
			errors.New("client is offline"),
		)
	}

	fut, err := c.actor.Ref().Ask(ctx, fetchMsg{url: url, ctx: ctx}).
		Await(ctx).Unpack()
	if err != nil {
		return nil, err
	}

	body, err := fut.Await(ctx).Unpack()
	if err != nil {
		var ue *upstream.Error
		if !errors.As(err, &ue) {
			err = upstream.ClassifyTransport(err)
		}
		return nil, err
	}

	return body, nil
}

// Stop terminates the dispatch actor. In-flight physical requests run to
// completion but their results are no longer joinable.
func (c *Client) Stop() {
	c.actor.Stop()
}
