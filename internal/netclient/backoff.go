package netclient

import (
	"sync"
	"time"
)

// backoffState is the shared failure counter behind the pre-request delay.
// It is global to the client rather than per-request: once upstream starts
// failing, every outgoing request slows down together, and one success
// clears the penalty for all of them.
type backoffState struct {
	mu sync.Mutex

	base     time.Duration
	max      time.Duration
	failures int

	// floor is the upstream-suggested minimum for the next delay,
	// carried from a rate-limit response's Retry-After hint.
	floor time.Duration
}

func newBackoffState(base, max time.Duration) *backoffState {
	return &backoffState{base: base, max: max}
}

// Delay returns the pre-request sleep implied by the current failure count.
// Zero failures means no delay; each consecutive failure doubles the delay
// until it saturates at the maximum.
func (b *backoffState) Delay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures == 0 {
		return 0
	}

	d := b.base
	for i := 1; i < b.failures; i++ {
		d *= 2
		if d >= b.max {
			d = b.max
			break
		}
	}
	if d > b.max {
		d = b.max
	}

	// An explicit upstream hint outranks both the schedule and the cap.
	if d < b.floor {
		d = b.floor
	}

	return d
}

// Failure records one retryable failure. A non-zero hint is the upstream's
// Retry-After suggestion and becomes the floor of the next delay.
func (b *backoffState) Failure(hint time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.floor = hint
}

// Reset clears the failure count after a successful request.
func (b *backoffState) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.floor = 0
}
