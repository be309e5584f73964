// Package cache implements the response cache: two independent TTL
// namespaces (users, invites) keyed by canonical route, with a background
// reaper sweeping both every 120 seconds.
package cache

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Entry is a frozen response snapshot.
type Entry struct {
	Bytes    []byte
	Headers  http.Header
	Status   int
	CachedAt time.Time
}

type namespace struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func newNamespace() *namespace {
	return &namespace{entries: make(map[string]Entry)}
}

// get returns the entry for key if present and fresher than ttl. A stale hit
// is reported as a miss without being deleted; the reaper reclaims it on its
// own schedule so a read never pays for eviction.
func (n *namespace) get(key string, ttl time.Duration) (Entry, bool) {
	n.mu.RLock()
	e, ok := n.entries[key]
	n.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	if time.Since(e.CachedAt) >= ttl {
		return Entry{}, false
	}
	return e, true
}

func (n *namespace) set(key string, e Entry) {
	n.mu.Lock()
	n.entries[key] = e
	n.mu.Unlock()
}

// sweep removes every entry older than ttl, holding the namespace's write
// lock only for the duration of this namespace's pass.
func (n *namespace) sweep(now time.Time, ttl time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for key, e := range n.entries {
		if now.Sub(e.CachedAt) >= ttl {
			delete(n.entries, key)
		}
	}
}

func (n *namespace) size() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.entries)
}

// Cache is the Response Cache: the users and invites namespaces plus the
// background reaper that evicts stale entries from both every 120s.
type Cache struct {
	ttl     time.Duration
	users   *namespace
	invites *namespace

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

const reapInterval = 120 * time.Second

// New returns a Cache with the given TTL and starts its reaper goroutine.
// Callers must call Close on shutdown to stop the reaper.
func New(ttl time.Duration) *Cache {
	c := &Cache{
		ttl:     ttl,
		users:   newNamespace(),
		invites: newNamespace(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.reapLoop()
	return c
}

func (c *Cache) reapLoop() {
	defer close(c.done)
	t := time.NewTicker(reapInterval)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			c.users.sweep(now, c.ttl)
			c.invites.sweep(now, c.ttl)
		case <-c.stop:
			return
		}
	}
}

// Close stops the reaper and waits for it to exit.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// GetUsers reads the users namespace.
func (c *Cache) GetUsers(key string) (Entry, bool) { return c.users.get(key, c.ttl) }

// GetInvites reads the invites namespace.
func (c *Cache) GetInvites(key string) (Entry, bool) { return c.invites.get(key, c.ttl) }

// InsertUsers overwrites the users namespace entry for key.
func (c *Cache) InsertUsers(key string, bytes []byte, headers http.Header, status int) {
	c.users.set(key, Entry{Bytes: bytes, Headers: headers, Status: status, CachedAt: time.Now()})
}

// InsertInvites overwrites the invites namespace entry for key.
func (c *Cache) InsertInvites(key string, bytes []byte, headers http.Header, status int) {
	c.invites.set(key, Entry{Bytes: bytes, Headers: headers, Status: status, CachedAt: time.Now()})
}

// Status reports the current size of each namespace.
func (c *Cache) Status() map[string]int {
	return map[string]int{
		"users":   c.users.size(),
		"invites": c.invites.size(),
	}
}

// StatusJSON marshals Status as a JSON object for diagnostic use.
func (c *Cache) StatusJSON() ([]byte, error) {
	return json.Marshal(c.Status())
}
