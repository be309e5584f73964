package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/blastoise186/http-proxy/internal/cache"
	"github.com/blastoise186/http-proxy/internal/classify"
	"github.com/blastoise186/http-proxy/internal/ratelimit"
	"github.com/blastoise186/http-proxy/internal/telemetry"
)

// newTestDeps wires a server.Deps pointed at an httptest.Server standing in
// for discord.com, reachable via a client whose Transport rewrites the host.
func newTestDeps(t *testing.T, upstream *httptest.Server) Deps {
	t.Helper()
	u, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			req.URL.Scheme = u.Scheme
			req.URL.Host = u.Host
			return http.DefaultTransport.RoundTrip(req)
		}),
	}
	return Deps{
		Registry:        ratelimit.NewRegistry("Bot test-token"),
		Classifier:      classify.New(),
		Cache:           cache.New(time.Minute),
		Telemetry:       telemetry.NoOp{},
		TrackInProgress: true,
		Client:          client,
		UpstreamHost:    "discord.com",
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestHandleProxy_InvalidMethodReturns405WithoutContactingUpstream(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	deps := newTestDeps(t, upstream)
	srv := New(deps)

	req := httptest.NewRequest("TRACE", "/users/@me", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if called {
		t.Fatal("upstream was contacted for an invalid method")
	}
}

func TestHandleProxy_InvalidPathReturns400(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be contacted for an unclassifiable path")
	}))
	defer upstream.Close()

	deps := newTestDeps(t, upstream)
	srv := New(deps)

	req := httptest.NewRequest(http.MethodGet, "/not-a-real-route", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleProxy_CacheableSuccessIsCachedAndBookkeepingHeadersStripped(t *testing.T) {
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-RateLimit-Limit", "5")
		w.Header().Set("X-RateLimit-Remaining", "4")
		w.Header().Set("X-RateLimit-Reset", "9999999999")
		w.Header().Set("X-RateLimit-Bucket", "abc123")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"code":"xyz"}`))
	}))
	defer upstream.Close()

	deps := newTestDeps(t, upstream)
	srv := New(deps)

	req1 := httptest.NewRequest(http.MethodGet, "/invites/xyz", nil)
	rec1 := httptest.NewRecorder()
	srv.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("first response status = %d, want 200", rec1.Code)
	}
	if calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", calls)
	}

	// Second identical request must be served from cache: no second upstream call.
	req2 := httptest.NewRequest(http.MethodGet, "/invites/xyz", nil)
	rec2 := httptest.NewRecorder()
	srv.ServeHTTP(rec2, req2)
	if calls != 1 {
		t.Fatalf("upstream calls after cache hit = %d, want 1", calls)
	}
	if rec2.Body.String() != `{"code":"xyz"}` {
		t.Fatalf("cached body = %q", rec2.Body.String())
	}
	if rec2.Header().Get("X-RateLimit-Remaining") != "" {
		t.Fatal("bookkeeping header leaked into cached response")
	}
	if rec2.Header().Get("Content-Type") != "application/json" {
		t.Fatal("non-bookkeeping header was stripped from cached response")
	}
}

func TestHandleProxy_NonCacheableRouteNeverCaches(t *testing.T) {
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-RateLimit-Limit", "5")
		w.Header().Set("X-RateLimit-Remaining", "4")
		w.Header().Set("X-RateLimit-Reset", "9999999999")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer upstream.Close()

	deps := newTestDeps(t, upstream)
	srv := New(deps)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/channels/1", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("iteration %d: status = %d, want 200", i, rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("upstream calls = %d, want 2 (route must never be cached)", calls)
	}
}

func TestHandleProxy_MeUsersRouteNeverCaches(t *testing.T) {
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-RateLimit-Limit", "5")
		w.Header().Set("X-RateLimit-Remaining", "4")
		w.Header().Set("X-RateLimit-Reset", "9999999999")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"me"}`))
	}))
	defer upstream.Close()

	deps := newTestDeps(t, upstream)
	srv := New(deps)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/users/@me", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("iteration %d: status = %d, want 200", i, rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("upstream calls = %d, want 2 (@me must never be cached)", calls)
	}
}

func TestHandleProxy_RateLimitedResponseIsForwardedVerbatim(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Scope", "user")
		w.Header().Set("Retry-After", "1")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"retry_after":1.0,"global":false}`))
	}))
	defer upstream.Close()

	deps := newTestDeps(t, upstream)
	srv := New(deps)

	req := httptest.NewRequest(http.MethodGet, "/channels/42", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Body.String() != `{"retry_after":1.0,"global":false}` {
		t.Fatalf("429 body = %q", rec.Body.String())
	}
}
