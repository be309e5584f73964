package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// gateWaiter is one suspended acquirer. granted is only read/written under
// the owning fifoGate's mutex.
type gateWaiter struct {
	ch      chan struct{}
	granted bool
}

// fifoGate is the shared suspension primitive behind both the per-bucket
// gate and the per-token global gate: a FIFO queue of one-shot wake signals,
// drained from the front whenever a caller-supplied predicate holds. Waking
// is always performed by pump, never by the waiter itself re-racing for
// capacity, which is what gives strict FIFO issuance order within a bucket.
type fifoGate struct {
	mu    sync.Mutex
	queue list.List // of *gateWaiter
}

// tryFastPath attempts immediate issuance when nothing is queued ahead,
// avoiding a channel allocation on the common uncontended path. Returns
// true if issuance happened.
func (g *fifoGate) tryFastPath(canIssue func() bool, onIssue func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.queue.Len() == 0 && canIssue() {
		onIssue()
		return true
	}
	return false
}

// enqueue registers a new waiter at the back of the queue and immediately
// attempts to pump the queue (a concurrent state change, e.g. a window
// rollover computed by another goroutine, may already have freed capacity
// for waiters ahead of this one).
func (g *fifoGate) enqueue(canIssue func() bool, onIssue func()) *list.Element {
	g.mu.Lock()
	defer g.mu.Unlock()
	elem := g.queue.PushBack(&gateWaiter{ch: make(chan struct{})})
	g.pumpLocked(canIssue, onIssue)
	return elem
}

// pumpLocked grants tickets to the FIFO head while canIssue holds. Must be
// called with mu held.
func (g *fifoGate) pumpLocked(canIssue func() bool, onIssue func()) {
	for {
		front := g.queue.Front()
		if front == nil {
			return
		}
		if !canIssue() {
			return
		}
		onIssue()
		w := front.Value.(*gateWaiter)
		w.granted = true
		close(w.ch)
		g.queue.Remove(front)
	}
}

// pump re-evaluates the predicate and grants waiters, taking the lock
// itself. Called after external state changes (report ingestion, a
// rollover discovered by a timer firing).
func (g *fifoGate) pump(canIssue func() bool, onIssue func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pumpLocked(canIssue, onIssue)
}

// wait blocks elem's owner until granted, ctx is done, or repeatedly until
// nextWait(now) elapses and a retry-pump observes no grant yet. nextWait may
// be called multiple times as state changes (e.g. a later, larger
// Retry-After extends the wait).
func (g *fifoGate) wait(ctx context.Context, elem *list.Element, canIssue func() bool, onIssue func(), nextWait func() time.Duration) error {
	w := elem.Value.(*gateWaiter)
	for {
		g.mu.Lock()
		if w.granted {
			g.mu.Unlock()
			return nil
		}
		d := nextWait()
		g.mu.Unlock()

		timer := time.NewTimer(d)
		select {
		case <-w.ch:
			timer.Stop()
			return nil
		case <-timer.C:
			g.pump(canIssue, onIssue)
			g.mu.Lock()
			granted := w.granted
			g.mu.Unlock()
			if granted {
				return nil
			}
			// loop: state may have changed (another 429 extended the
			// wait, or we're still not at the front).
		case <-ctx.Done():
			timer.Stop()
			g.mu.Lock()
			if !w.granted {
				g.queue.Remove(elem)
			}
			g.mu.Unlock()
			return ctx.Err()
		}
	}
}
