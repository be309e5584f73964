// Package server implements the request pipeline and the proxy's external
// HTTP interface: health, metrics, and a catch-all forward route.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/blastoise186/http-proxy/internal/cache"
	"github.com/blastoise186/http-proxy/internal/classify"
	"github.com/blastoise186/http-proxy/internal/ratelimit"
	"github.com/blastoise186/http-proxy/internal/telemetry"
)

// Deps holds every dependency the HTTP server needs, wired by the
// composition root.
type Deps struct {
	Registry        *ratelimit.Registry
	Classifier      *classify.Classifier
	Cache           *cache.Cache
	Telemetry       telemetry.Telemetry
	TrackInProgress bool
	Client          *http.Client
	UpstreamHost    string       // e.g. "discord.com"
	MetricsHandler  http.Handler // nil = no /metrics endpoint
	Tracer          trace.Tracer // nil = no distributed tracing
}

type server struct {
	deps Deps
}

// New builds the proxy's http.Handler: the health and metrics endpoints
// plus the catch-all forward-proxy route, wrapped in the standard
// middleware chain (recovery, request ID, logging, optional tracing).
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()
	r.Use(recovery)
	r.Use(requestID)
	r.Use(logging)
	if deps.Tracer != nil {
		r.Use(tracingMiddleware(deps.Tracer))
	}

	r.Get("/health", handleHealth)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.HandleFunc("/*", s.handleProxy)

	return r
}
