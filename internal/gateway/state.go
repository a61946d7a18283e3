package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nmoreno/facturia/internal/common"
)

// State is the process-wide gateway state: the sliding request-timestamp
// window for rate limiting and the consecutive-failure count for circuit
// breaking. It is owned by a Gateway and injected so tests can construct
// independent gateways with isolated state.
type State struct {
	mu       sync.Mutex
	requests []time.Time
	failures int
	open     bool
	openedAt time.Time
	probing  bool
}

// NewState creates a fresh gateway state.
func NewState() *State {
	return &State{}
}

// allow decides whether a call may proceed given the circuit state.
// When the circuit is open and the cooldown has elapsed, exactly one caller
// is let through as a half-open probe; everyone else keeps failing fast.
func (s *State) allow(now time.Time, cooldown time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	if s.probing {
		return common.ErrCircuitOpen
	}
	if now.Sub(s.openedAt) < cooldown {
		return common.ErrCircuitOpen
	}
	s.probing = true
	return nil
}

// releaseProbe returns the half-open slot when the probe never reached the
// service, leaving the cooldown clock untouched so the next caller may probe
// immediately.
func (s *State) releaseProbe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probing = false
}

// reserve blocks until a request slot is available in the trailing window,
// then records the request timestamp. It fails with ErrRateLimited when the
// context ends before a slot opens.
func (s *State) reserve(ctx context.Context, quota int, window time.Duration) error {
	for {
		s.mu.Lock()
		now := time.Now()
		s.prune(now, window)
		if len(s.requests) < quota {
			s.requests = append(s.requests, now)
			s.mu.Unlock()
			return nil
		}
		// Wait for the oldest request in the window to age out.
		wait := s.requests[0].Add(window).Sub(now)
		s.mu.Unlock()

		if deadline, ok := ctx.Deadline(); ok && now.Add(wait).After(deadline) {
			return fmt.Errorf("%w: next slot in %s", common.ErrRateLimited, wait.Round(time.Second))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", common.ErrRateLimited, ctx.Err())
		case <-timer.C:
		}
	}
}

// prune drops timestamps that have aged out of the trailing window.
// Caller must hold the mutex.
func (s *State) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(s.requests) && !s.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.requests = append(s.requests[:0], s.requests[i:]...)
	}
}

// recordSuccess closes the circuit and resets the failure counter.
func (s *State) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = 0
	s.open = false
	s.probing = false
}

// recordFailure counts one end-to-end failure and opens (or re-opens) the
// circuit once the threshold is reached. Returns true when the circuit is
// open after this failure.
func (s *State) recordFailure(now time.Time, threshold int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures++
	if s.probing {
		// Failed probe restarts the cooldown.
		s.open = true
		s.openedAt = now
		s.probing = false
		return true
	}
	if s.failures >= threshold {
		s.open = true
		s.openedAt = now
		return true
	}
	return false
}

// ConsecutiveFailures returns the current consecutive-failure count.
func (s *State) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Open reports whether the circuit is currently open.
func (s *State) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// WindowSize returns how many requests sit in the trailing window.
func (s *State) WindowSize(window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(time.Now(), window)
	return len(s.requests)
}
