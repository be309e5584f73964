package cache

import (
	"net/http"
	"testing"
	"time"
)

func TestGetMissThenHit(t *testing.T) {
	c := New(50 * time.Millisecond)
	defer c.Close()

	if _, ok := c.GetUsers("users/123"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.InsertUsers("users/123", []byte(`{"id":"123"}`), http.Header{}, 200)
	e, ok := c.GetUsers("users/123")
	if !ok {
		t.Fatal("expected hit after insert")
	}
	if string(e.Bytes) != `{"id":"123"}` || e.Status != 200 {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestNamespacesAreIndependent(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.InsertUsers("shared-key", []byte("user-body"), http.Header{}, 200)

	if _, ok := c.GetInvites("shared-key"); ok {
		t.Fatal("invites lookup must not see a users-namespace insert")
	}
	if e, ok := c.GetUsers("shared-key"); !ok || string(e.Bytes) != "user-body" {
		t.Fatal("users namespace did not retain its own insert")
	}
}

func TestEntryExpiresByCachedAt(t *testing.T) {
	c := New(20 * time.Millisecond)
	defer c.Close()

	c.InsertInvites("invites/abc", []byte("body"), http.Header{}, 200)
	if _, ok := c.GetInvites("invites/abc"); !ok {
		t.Fatal("expected immediate hit")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.GetInvites("invites/abc"); ok {
		t.Fatal("expected entry to go stale once now - cached_at >= ttl")
	}
}

func TestStatusReportsNamespaceSizes(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.InsertUsers("u1", nil, http.Header{}, 200)
	c.InsertUsers("u2", nil, http.Header{}, 200)
	c.InsertInvites("i1", nil, http.Header{}, 200)

	status := c.Status()
	if status["users"] != 2 || status["invites"] != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestReaperEvictsStaleEntries(t *testing.T) {
	// The reaper only sweeps every 120s in production; exercise the sweep
	// logic directly rather than waiting on the real ticker.
	n := newNamespace()
	n.set("stale", Entry{CachedAt: time.Now().Add(-time.Hour)})
	n.set("fresh", Entry{CachedAt: time.Now()})

	n.sweep(time.Now(), time.Minute)

	if n.size() != 1 {
		t.Fatalf("expected exactly the fresh entry to survive, size=%d", n.size())
	}
	if _, ok := n.entries["fresh"]; !ok {
		t.Fatal("fresh entry should not have been evicted")
	}
}

func TestOverwriteIsLastWriterWins(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.InsertUsers("k", []byte("first"), http.Header{}, 200)
	c.InsertUsers("k", []byte("second"), http.Header{}, 304)

	e, ok := c.GetUsers("k")
	if !ok || string(e.Bytes) != "second" || e.Status != 304 {
		t.Fatalf("expected last write to win, got %+v", e)
	}
}
