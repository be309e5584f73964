package ratelimit

import (
	"context"
	"time"
)

// bucketState tracks one rate-limit bucket's window. remaining is the local
// view of spendable tickets in the current window; it is decremented
// optimistically at issuance and overwritten authoritatively whenever a
// report carries fresh headers.
type bucketState struct {
	known          bool // has any report ever populated limit/remaining?
	probeInFlight  bool // unknown-state optimistic single ticket outstanding
	limit          uint32
	remaining      uint32
	issuedInFlight uint32
	resetsAt       time.Time
}

// bucket pairs a bucketState with the FIFO suspension queue gating access to
// it. One bucket exists per (token, BucketKey), created on first use and
// kept for the process lifetime.
type bucket struct {
	gate  fifoGate
	state bucketState
}

func newBucket() *bucket {
	return &bucket{}
}

// maybeRollover refreshes a known bucket whose window has elapsed, treating
// the reset as implicitly reopening the full limit. Must be called with the
// gate's mutex held (it is only ever invoked from within canIssue/onIssue
// closures, which fifoGate already serialises under its mutex).
func (s *bucketState) maybeRollover(now time.Time) {
	if s.known && !s.resetsAt.IsZero() && !now.Before(s.resetsAt) {
		s.remaining = s.limit
		s.issuedInFlight = 0
		s.resetsAt = time.Time{}
	}
}

func (s *bucketState) canIssue(now time.Time) bool {
	s.maybeRollover(now)
	if !s.known {
		return !s.probeInFlight
	}
	return s.remaining > 0
}

func (s *bucketState) onIssue(now time.Time) {
	if !s.known {
		s.probeInFlight = true
		s.issuedInFlight++
		return
	}
	s.remaining--
	s.issuedInFlight++
}

// nextWait returns how long to sleep before re-evaluating issuance: either
// until the bucket's window resets, or a short poll interval when the
// window is open-ended (unknown state, or blocked only by the global gate).
func (s *bucketState) nextWait(now time.Time) time.Duration {
	if s.known && !s.resetsAt.IsZero() && s.resetsAt.After(now) {
		return s.resetsAt.Sub(now)
	}
	return 5 * time.Second
}

// acquire suspends until the bucket's gate permits issuance, independent of
// the coordinator's global gate (the caller is responsible for waiting on
// the global gate too; see Coordinator.Acquire).
func (b *bucket) acquire(ctx context.Context) error {
	canIssue := func() bool { return b.state.canIssue(time.Now()) }
	onIssue := func() { b.state.onIssue(time.Now()) }

	if b.gate.tryFastPath(canIssue, onIssue) {
		return nil
	}
	elem := b.gate.enqueue(canIssue, onIssue)
	nextWait := func() time.Duration { return b.state.nextWait(time.Now()) }
	return b.gate.wait(ctx, elem, canIssue, onIssue, nextWait)
}

// report ingests a completed ticket's outcome into the bucket and wakes any
// waiters the new state now permits. limit, remaining and resetsAt come
// from a successfully parsed set of rate-limit response headers; ok is
// false when no such headers were present (e.g. a 5xx or transport error).
func (b *bucket) report(ok bool, limit, remaining uint32, resetsAt time.Time) {
	canIssue := func() bool { return b.state.canIssue(time.Now()) }
	onIssue := func() { b.state.onIssue(time.Now()) }

	b.gate.mu.Lock()
	if b.state.issuedInFlight > 0 {
		b.state.issuedInFlight--
	}
	if ok {
		b.state.known = true
		b.state.probeInFlight = false
		b.state.limit = limit
		b.state.remaining = remaining
		b.state.resetsAt = resetsAt
	} else {
		b.state.probeInFlight = false
	}
	b.gate.pumpLocked(canIssue, onIssue)
	b.gate.mu.Unlock()
}
