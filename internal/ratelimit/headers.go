package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// parsedHeaders is the subset of an upstream response's rate-limit
// bookkeeping the Coordinator needs to update bucket/global state.
type parsedHeaders struct {
	ok         bool // did the response carry any X-RateLimit-* data at all?
	limit      uint32
	remaining  uint32
	resetsAt   time.Time
	is429      bool
	scope      string // "global", "user", "shared", or "" if absent
	retryAfter time.Duration
}

// BookkeepingHeaders are the upstream headers that must never reach a
// client via the response cache.
var BookkeepingHeaders = []string{
	"X-RateLimit-Bucket",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
	"X-RateLimit-Reset-After",
}

// StripBookkeepingHeaders removes the bucket-accounting headers from h
// in place.
func StripBookkeepingHeaders(h http.Header) {
	for _, name := range BookkeepingHeaders {
		h.Del(name)
	}
}

func parseHeaders(h http.Header, status int, body []byte) parsedHeaders {
	var p parsedHeaders
	p.is429 = status == http.StatusTooManyRequests

	if v := h.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			p.limit = uint32(n)
			p.ok = true
		}
	}
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			p.remaining = uint32(n)
			p.ok = true
		}
	}

	var resetAt, resetAfterAt time.Time
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			resetAt = unixSeconds(f)
			p.ok = true
		}
	}
	if v := h.Get("X-RateLimit-Reset-After"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			resetAfterAt = time.Now().Add(secondsDuration(f))
			p.ok = true
		}
	}
	p.resetsAt = laterOf(resetAt, resetAfterAt)

	p.scope = h.Get("X-RateLimit-Scope")
	if p.is429 {
		if v := h.Get("Retry-After"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				p.retryAfter = secondsDuration(f)
			}
		}
		// The upstream's 429 body echoes scope/retry_after as JSON too;
		// fall back to it with a cheap field read (no full unmarshal)
		// when the headers alone didn't resolve scope, matching how
		// Discord's own documented 429 payload looks:
		// {"message": "...", "retry_after": 1.5, "global": true}
		if p.scope == "" && len(body) > 0 {
			if gjson.GetBytes(body, "global").Bool() {
				p.scope = "global"
			}
		}
		if p.retryAfter == 0 && len(body) > 0 {
			if r := gjson.GetBytes(body, "retry_after"); r.Exists() {
				p.retryAfter = secondsDuration(r.Float())
			}
		}
	}
	return p
}

func unixSeconds(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

func secondsDuration(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func laterOf(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.After(b) {
		return a
	}
	return b
}
