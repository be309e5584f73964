// Package ratelimit implements a per-token rate-limit coordinator: FIFO
// ticket issuance gated on bucket state derived from upstream response
// headers, plus a global gate triggered by scope=global 429s.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/blastoise186/http-proxy/internal/classify"
)

// Coordinator is one per bearer token. It owns a global gate and a map of
// BucketKey -> bucket, created on demand and kept for the process lifetime
// (no eviction -- cardinality is bounded by token x active route buckets).
type Coordinator struct {
	global *globalGate

	mu      sync.RWMutex
	buckets map[classify.BucketKey]*bucket
}

// NewCoordinator returns a Coordinator with no known buckets.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		global:  &globalGate{},
		buckets: make(map[classify.BucketKey]*bucket),
	}
}

func (c *Coordinator) bucketFor(key classify.BucketKey) *bucket {
	c.mu.RLock()
	b, ok := c.buckets[key]
	c.mu.RUnlock()
	if ok {
		return b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.buckets[key]; ok {
		return b
	}
	b = newBucket()
	c.buckets[key] = b
	return b
}

// Ticket is returned by Acquire. Report must be called exactly once.
type Ticket struct {
	coord     *Coordinator
	bucket    *bucket
	route     classify.Route
	reported bool
	mu        sync.Mutex
}

// Route returns the classified route this ticket was issued for, for
// telemetry labelling.
func (t *Ticket) Route() classify.Route { return t.route }

// Acquire suspends until issuance is permitted by both the coordinator's
// global gate and the bucket gate for (route, ids).
// It returns an error (ctx.Err()) only when ctx is done while waiting;
// callers pass a context tied to the coordinator's shutdown signal, or a
// request context for cancellation, and map the error themselves (the
// pipeline renders it as proxyerr.ErrAcquiringTicket).
func (c *Coordinator) Acquire(ctx context.Context, route classify.Route) (*Ticket, error) {
	if err := c.global.wait(ctx); err != nil {
		return nil, err
	}
	key := classify.NewBucketKey(route)
	b := c.bucketFor(key)
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	return &Ticket{coord: c, bucket: b, route: route}, nil
}

// Report ingests the upstream response (or its absence, on transport
// failure) exactly once per ticket. status is the HTTP status code, or 0 if
// forwarding failed before a response was received. body is the response
// body if already buffered (used only to resolve 429 scope/retry_after when
// headers alone are ambiguous); it may be nil.
func (t *Ticket) Report(headers http.Header, status int, body []byte) {
	t.mu.Lock()
	if t.reported {
		t.mu.Unlock()
		return
	}
	t.reported = true
	t.mu.Unlock()

	if headers == nil {
		t.bucket.report(false, 0, 0, time.Time{})
		return
	}

	p := parseHeaders(headers, status, body)

	if p.is429 && p.scope == "global" {
		resetsAt := time.Now().Add(p.retryAfter)
		t.coord.global.trigger(resetsAt)
		// A global 429 still carries bucket-scoped accounting; ingest it
		// too so the bucket doesn't keep believing it has budget.
		t.bucket.report(p.ok, p.limit, p.remaining, p.resetsAt)
		return
	}

	t.bucket.report(p.ok, p.limit, p.remaining, p.resetsAt)
}
