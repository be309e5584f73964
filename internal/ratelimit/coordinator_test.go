package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/blastoise186/http-proxy/internal/classify"
)

func route(channelID, msgID string) classify.Route {
	return classify.Route{Kind: classify.RouteChannelsIDMessagesID, IDs: []string{channelID, msgID}}
}

func TestAcquireOptimisticProbeThenGate(t *testing.T) {
	c := NewCoordinator()
	ctx := context.Background()

	t1, err := c.Acquire(ctx, route("1", "100"))
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	done := make(chan struct{})
	go func() {
		t2, err := c.Acquire(ctx, route("1", "200"))
		if err != nil {
			t.Errorf("second acquire: %v", err)
		} else {
			t2.Report(headersWithLimit(2, 1, 5*time.Second), 200, nil)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second acquirer must block until the probe reports")
	case <-time.After(50 * time.Millisecond):
	}

	t1.Report(headersWithLimit(2, 1, 5*time.Second), 200, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second acquirer never woke after probe report")
	}
}

func TestBucketFIFOOrdering(t *testing.T) {
	c := NewCoordinator()
	ctx := context.Background()

	probe, err := c.Acquire(ctx, route("1", "1"))
	if err != nil {
		t.Fatal(err)
	}
	// Populate known state with remaining=1 so the next acquire succeeds
	// immediately and the one after blocks.
	probe.Report(headersWithLimit(2, 1, 5*time.Second), 200, nil)

	a, err := c.Acquire(ctx, route("1", "2"))
	if err != nil {
		t.Fatal(err)
	}

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)
	for i, n := range []int{2, 3} {
		i, n := i, n
		go func() {
			defer wg.Done()
			tk, err := c.Acquire(ctx, route("1", "x"))
			if err != nil {
				t.Errorf("acquire %d: %v", n, err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			tk.Report(headersWithLimit(2, 1, time.Second), 200, nil)
		}()
		time.Sleep(10 * time.Millisecond) // ensure arrival order
	}

	time.Sleep(20 * time.Millisecond)
	a.Report(headersWithLimit(2, 1, time.Second), 200, nil) // frees exactly one slot
	wg.Wait()

	if len(order) != 2 || order[0] != 0 {
		t.Fatalf("expected FIFO order [0 1], got %v", order)
	}
}

func TestGlobal429BlocksAllBuckets(t *testing.T) {
	c := NewCoordinator()
	ctx := context.Background()

	t1, err := c.Acquire(ctx, route("1", "1"))
	if err != nil {
		t.Fatal(err)
	}
	h := http.Header{}
	h.Set("X-RateLimit-Scope", "global")
	h.Set("Retry-After", "0.05")
	t1.Report(h, http.StatusTooManyRequests, nil)

	start := time.Now()
	t2, err := c.Acquire(ctx, route("2", "2"))
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("acquire on a different bucket returned too fast (%v); global gate not honoured", elapsed)
	}
	t2.Report(nil, 0, nil)
}

func TestReportIsIdempotent(t *testing.T) {
	c := NewCoordinator()
	tk, err := c.Acquire(context.Background(), route("1", "1"))
	if err != nil {
		t.Fatal(err)
	}
	tk.Report(headersWithLimit(1, 0, time.Second), 200, nil)
	tk.Report(headersWithLimit(1, 0, time.Second), 200, nil) // must be a no-op, not a double-decrement
}

func headersWithLimit(limit, remaining uint32, resetAfter time.Duration) http.Header {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", strconv.Itoa(int(limit)))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(int(remaining)))
	h.Set("X-RateLimit-Reset-After", strconv.FormatFloat(resetAfter.Seconds(), 'f', -1, 64))
	return h
}
