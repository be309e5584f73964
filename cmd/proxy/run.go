package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"
	"go.opentelemetry.io/otel/trace"

	"github.com/blastoise186/http-proxy/internal/cache"
	"github.com/blastoise186/http-proxy/internal/classify"
	"github.com/blastoise186/http-proxy/internal/config"
	"github.com/blastoise186/http-proxy/internal/ratelimit"
	"github.com/blastoise186/http-proxy/internal/server"
	"github.com/blastoise186/http-proxy/internal/telemetry"
)

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("starting proxy", "version", version, "addr", cfg.Addr())

	// Shared DNS cache for the upstream HTTP client, refreshed periodically
	// so a Discord edge rotation doesn't pin the proxy to a dead IP.
	dnsResolver := &dnscache.Resolver{}
	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-t.C:
				dnsResolver.Refresh(true)
			}
		}
	}()

	transport := server.NewTransport(dnsResolver, !cfg.DisableHTTP2)
	client := &http.Client{Transport: transport}

	registry := ratelimit.NewRegistry(cfg.DiscordToken)
	classifier := classify.New()
	respCache := cache.New(cfg.CacheDuration)
	defer respCache.Close()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics := telemetry.NewPrometheus(promRegistry, cfg.MetricKey, cfg.MetricTimeout)
	defer metrics.Close()
	metricsHandler := promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
	slog.Info("prometheus metrics enabled", "prefix", cfg.MetricKey)

	var tracer trace.Tracer
	var tracingShutdown func(context.Context) error
	if cfg.TracingEndpoint != "" {
		shutdown, err := telemetry.SetupTracing(context.Background(), cfg.TracingEndpoint, cfg.TracingSampleRate)
		if err != nil {
			slog.Warn("tracing setup failed, continuing without tracing", "error", err)
		} else {
			tracingShutdown = shutdown
			tracer = telemetry.Tracer("http-proxy")
			slog.Info("opentelemetry tracing enabled",
				"endpoint", cfg.TracingEndpoint,
				"sample_rate", cfg.TracingSampleRate,
			)
		}
	}

	handler := server.New(server.Deps{
		Registry:        registry,
		Classifier:      classifier,
		Cache:           respCache,
		Telemetry:       metrics,
		TrackInProgress: cfg.TrackInProgress,
		Client:          client,
		UpstreamHost:    "discord.com",
		MetricsHandler:  metricsHandler,
		Tracer:          tracer,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("proxy ready", "addr", cfg.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if tracingShutdown != nil {
		if err := tracingShutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}

	slog.Info("proxy stopped")
	return nil
}
