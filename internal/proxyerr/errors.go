// Package proxyerr defines the sentinel errors the proxy core surfaces, and
// their mapping to HTTP status codes understood by the request pipeline.
package proxyerr

import (
	"errors"
	"net/http"
)

// Sentinel errors for the proxy domain. Non-2xx upstream responses
// (including 429) are never represented as errors here -- they are
// forwarded as-is by the pipeline.
var (
	ErrInvalidMethod   = errors.New("method not allowed")
	ErrInvalidPath     = errors.New("path does not match any known route")
	ErrAcquiringTicket = errors.New("rate limit coordinator shut down while acquiring a ticket")
	ErrInvalidURI      = errors.New("failed to construct upstream request URI")
	ErrRequestIssue    = errors.New("upstream request failed")
)

// Status maps a core error to the HTTP status the pipeline should render.
// Unrecognised errors map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrInvalidMethod):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, ErrAcquiringTicket):
		return http.StatusInternalServerError
	case errors.Is(err, ErrInvalidURI):
		return http.StatusInternalServerError
	case errors.Is(err, ErrRequestIssue):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
