// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics defines the Prometheus instruments for a harvest run and
// the two ways of exposing them from a CLI process: an HTTP endpoint that
// lives for the duration of the run, and a text-format dump written at exit.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
)

// Operation labels.
const (
	OpSearch = "search"
	OpDetail = "detail"
)

var (
	// Attempts counts single HTTP attempts by operation and outcome
	// (success, retryable, fatal).
	Attempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scopus_attempts_total",
		Help: "HTTP attempts against Scopus by operation and classified outcome",
	}, []string{"op", "outcome"})

	// Retries counts backoff waits taken before a retry.
	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scopus_retries_total",
		Help: "Retries after a retryable outcome by operation",
	}, []string{"op"})

	// BackoffSeconds observes each backoff wait.
	BackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scopus_retry_backoff_seconds",
		Help:    "Backoff duration before a retry by operation",
		Buckets: []float64{0.5, 1, 2, 4, 8, 16, 30, 60},
	}, []string{"op"})

	// Exhausted counts calls that used up their attempt budget.
	Exhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scopus_retry_exhausted_total",
		Help: "Calls that exhausted their attempt budget by operation",
	}, []string{"op"})

	// KeyRotations counts credential rotations by the operation that asked for them.
	KeyRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scopus_key_rotations_total",
		Help: "API key rotations by requesting operation",
	}, []string{"op"})

	// Pages counts successfully fetched search pages.
	Pages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scopus_search_pages_total",
		Help: "Search result pages fetched",
	})

	// Entries counts search entries handed to the caller.
	Entries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scopus_search_entries_total",
		Help: "Search entries yielded, excluding error placeholders",
	})

	// Placeholders counts upstream error placeholder entries that were skipped.
	Placeholders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scopus_search_placeholders_total",
		Help: "Error placeholder entries skipped",
	})

	// DegradedEnrichments counts detail lookups that fell back to an empty author list.
	DegradedEnrichments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scopus_detail_degraded_total",
		Help: "Detail lookups that returned no authors after exhausting attempts",
	})

	// Authors counts roster entries processed by final status (ok, failed).
	Authors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_authors_total",
		Help: "Roster authors processed by status",
	}, []string{"status"})

	// Records counts normalized records kept after filtering.
	Records = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_records_total",
		Help: "Records kept after type and year filtering",
	})

	// AuthorDuration observes the wall time spent harvesting one author.
	AuthorDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvest_author_duration_seconds",
		Help:    "Time spent harvesting one author",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// Serve exposes the default registry on addr at /metrics until ctx is done.
// It binds before returning so an unusable address is reported to the
// caller; the returned address carries the resolved port. The returned
// channel is closed once the server has stopped.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) (net.Addr, <-chan struct{}, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info().Str("addr", ln.Addr().String()).Msg("metrics endpoint listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", ln.Addr().String()).Msg("metrics endpoint failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return ln.Addr(), done, nil
}

// WriteFile writes every metric family in g to path in the Prometheus
// text exposition format, suitable for a node_exporter textfile collector.
func WriteFile(path string, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating metrics directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".metrics-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(tmp, mf); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
