// Package config loads the proxy's configuration from environment
// variables: defaults are applied first, then overridden by whatever is
// actually set.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the proxy's runtime configuration, sourced entirely from
// environment variables.
type Config struct {
	// DiscordToken is the default bearer sent upstream when a request omits
	// Authorization. Required.
	DiscordToken string

	// Host and Port form the listen socket.
	Host string
	Port string

	// DisableHTTP2 forbids HTTP/2 to the upstream when set.
	DisableHTTP2 bool

	// CacheDuration is the response cache TTL.
	CacheDuration time.Duration

	// MetricKey prefixes every emitted metric name.
	MetricKey string
	// MetricTimeout is the idle duration after which a gauge/histogram
	// label combination is reaped.
	MetricTimeout time.Duration
	// TrackInProgress enables the in-flight request gauge.
	TrackInProgress bool

	// LogLevel controls the minimum slog level emitted by the process.
	LogLevel slog.Level

	// TracingEndpoint is the OTLP gRPC collector address. Empty disables
	// tracing entirely.
	TracingEndpoint string
	// TracingSampleRate is the fraction of requests sampled when tracing
	// is enabled.
	TracingSampleRate float64
}

// Addr returns the listener address in host:port form.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Load reads Config from the environment, applying defaults and failing if
// DISCORD_TOKEN is absent.
func Load() (*Config, error) {
	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}

	cacheDuration, err := envSeconds("CACHE_DURATION", 600)
	if err != nil {
		return nil, err
	}
	metricTimeout, err := envSeconds("METRIC_TIMEOUT", 300)
	if err != nil {
		return nil, err
	}

	return &Config{
		DiscordToken:    token,
		Host:            envOr("HOST", "0.0.0.0"),
		Port:            envOr("PORT", "80"),
		DisableHTTP2:    envPresent("DISABLE_HTTP2"),
		CacheDuration:   cacheDuration,
		MetricKey:       envOr("METRIC_KEY", "twilight_http_proxy"),
		MetricTimeout:   metricTimeout,
		TrackInProgress:   envTruthy("TRACK_IN_PROGRESS"),
		LogLevel:          envLogLevel("LOG_LEVEL", slog.LevelInfo),
		TracingEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TracingSampleRate: envSampleRate("OTEL_TRACES_SAMPLER_ARG", 0.1),
	}, nil
}

func envSampleRate(name string, fallback float64) float64 {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}

// envPresent reports whether name is set to anything at all, including the
// empty string -- DISABLE_HTTP2's documented semantics.
func envPresent(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}

func envTruthy(name string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func envSeconds(name string, fallback int) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return time.Duration(fallback) * time.Second, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return time.Duration(n) * time.Second, nil
}

func envLogLevel(name string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
