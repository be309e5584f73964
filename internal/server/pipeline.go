package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blastoise186/http-proxy/internal/cache"
	"github.com/blastoise186/http-proxy/internal/classify"
	"github.com/blastoise186/http-proxy/internal/proxyerr"
	"github.com/blastoise186/http-proxy/internal/ratelimit"
	"github.com/blastoise186/http-proxy/internal/telemetry"
)

// maxBufferedBody caps how much of a cacheable or 429 response body the
// pipeline will buffer in memory before giving up and streaming instead.
const maxBufferedBody = 8 << 20

// handleProxy implements the request pipeline: classify, gate on the rate
// limit coordinator, forward, and cache or stream the response.
func (s *server) handleProxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	method := classify.ParseMethod(r.Method)
	if method == classify.MethodUnknown {
		writeJSONError(w, proxyerr.Status(proxyerr.ErrInvalidMethod), proxyerr.ErrInvalidMethod.Error())
		return
	}

	coord, effectiveBearer := s.deps.Registry.GetOrCreate(r.Header.Get("Authorization"))

	apiPrefix, trimmed := classify.Normalise(r.URL.Path)
	route, err := s.deps.Classifier.Classify(method, trimmed)
	if err != nil {
		writeJSONError(w, proxyerr.Status(proxyerr.ErrInvalidPath), err.Error())
		return
	}

	canonicalRoute := apiPrefix + trimmed
	methodLabel := method.String()
	routeLabel := route.Kind.String()

	if s.deps.TrackInProgress {
		labels := map[string]string{"method": methodLabel, "route": routeLabel}
		s.deps.Telemetry.GaugeInc(telemetry.MetricInFlight, labels)
		defer s.deps.Telemetry.GaugeDec(telemetry.MetricInFlight, labels)
	}

	cacheableInvites := route.Kind == classify.RouteInvitesCode
	cacheableUsers := route.Kind == classify.RouteUsersID && !strings.Contains(canonicalRoute, "@me")

	// Cache read-through. A hit returns without ever acquiring a ticket --
	// cached reads do not consume upstream budget.
	if cacheableInvites {
		if e, ok := s.deps.Cache.GetInvites(canonicalRoute); ok {
			writeCachedEntry(w, e)
			return
		}
	} else if cacheableUsers {
		if e, ok := s.deps.Cache.GetUsers(canonicalRoute); ok {
			writeCachedEntry(w, e)
			return
		}
	}

	ticket, err := coord.Acquire(ctx, route)
	if err != nil {
		writeJSONError(w, proxyerr.Status(proxyerr.ErrAcquiringTicket), proxyerr.ErrAcquiringTicket.Error())
		return
	}
	reported := false
	report := func(headers http.Header, status int, body []byte) {
		if reported {
			return
		}
		reported = true
		ticket.Report(headers, status, body)
	}
	// A task cancelled after forwarding but before the explicit report call
	// below must still report exactly once.
	defer report(nil, 0, nil)

	upstreamURL := "https://" + s.deps.UpstreamHost + canonicalRoute
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	outReq, err := http.NewRequestWithContext(ctx, r.Method, upstreamURL, r.Body)
	if err != nil {
		writeJSONError(w, proxyerr.Status(proxyerr.ErrInvalidURI), proxyerr.ErrInvalidURI.Error())
		return
	}
	outReq.Header = make(http.Header, len(r.Header))
	copyForwardHeaders(outReq.Header, r.Header)
	outReq.Header.Set("Authorization", effectiveBearer)
	outReq.Host = s.deps.UpstreamHost

	start := time.Now()
	resp, err := s.deps.Client.Do(outReq)
	if err != nil {
		writeJSONError(w, proxyerr.Status(proxyerr.ErrRequestIssue), proxyerr.ErrRequestIssue.Error())
		return
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	s.deps.Telemetry.HistogramObserve(telemetry.MetricUpstreamLatency, latency.Seconds(), map[string]string{
		"method": methodLabel,
		"route":  routeLabel,
		"status": strconv.Itoa(resp.StatusCode),
		"scope":  resp.Header.Get("X-RateLimit-Scope"),
	})

	// 429 bodies carry the scope/retry_after fallback the header parser
	// needs when X-RateLimit-Scope is absent; they're always small, so
	// buffering here doesn't violate the "non-cacheable responses may
	// stream" rule for the general case.
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBufferedBody))
		report(resp.Header, resp.StatusCode, body)
		copyResponseHeaders(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
		w.Write(body)
		io.Copy(w, resp.Body)
		return
	}

	successish := (resp.StatusCode >= 200 && resp.StatusCode < 300) || resp.StatusCode == http.StatusNotFound
	cacheable := cacheableInvites || cacheableUsers

	if cacheable && successish {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBufferedBody+1))
		if err != nil {
			report(resp.Header, resp.StatusCode, nil)
			writeJSONError(w, proxyerr.Status(proxyerr.ErrRequestIssue), proxyerr.ErrRequestIssue.Error())
			return
		}
		report(resp.Header, resp.StatusCode, nil)
		if len(body) > maxBufferedBody {
			// Too large to cache: send what was buffered, stream the rest.
			copyResponseHeaders(w.Header(), resp.Header)
			w.WriteHeader(resp.StatusCode)
			w.Write(body)
			io.Copy(w, resp.Body)
			return
		}

		originalHeaders := resp.Header.Clone()
		stripped := resp.Header.Clone()
		ratelimit.StripBookkeepingHeaders(stripped)
		switch {
		case cacheableInvites:
			s.deps.Cache.InsertInvites(canonicalRoute, body, stripped, resp.StatusCode)
		case cacheableUsers:
			s.deps.Cache.InsertUsers(canonicalRoute, body, stripped, resp.StatusCode)
		}

		copyResponseHeaders(w.Header(), originalHeaders)
		w.WriteHeader(resp.StatusCode)
		w.Write(body)
		return
	}

	// Non-cacheable or non-success -- return as-is, body may stream.
	report(resp.Header, resp.StatusCode, nil)
	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// writeCachedEntry serves a cache hit verbatim: the headers and status
// recorded at insertion time, plus the frozen body.
func writeCachedEntry(w http.ResponseWriter, e cache.Entry) {
	copyResponseHeaders(w.Header(), e.Headers)
	w.WriteHeader(e.Status)
	w.Write(e.Bytes)
}
