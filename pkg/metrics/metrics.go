// Package metrics exposes the Prometheus metrics of the Canvas client.
// All metrics are defined in their respective packages (client, ratelimit,
// pagination, cache, gradesync) to maintain modularity and avoid circular
// dependencies.
//
// This package serves them over HTTP and documents what is available.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handler returns the /metrics handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		Timeout: 5 * time.Second,
	})
}

// Server exposes /metrics while a long sync is running.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// Listen binds addr (e.g. ":9090" or "127.0.0.1:0") for the metrics endpoint.
func Listen(addr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())

	return &Server{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve serves until ctx is cancelled and then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.Addr()).Msg("Metrics exposed")
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - canvas_requests_total{method, status} (Counter): Requests by method and HTTP status
//   - canvas_request_duration_seconds{method} (Histogram): Request duration by method
//   - canvas_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - canvas_rate_limit_remaining (Gauge): Last reported X-Rate-Limit-Remaining
//   - canvas_rate_limit_waits_total{severity} (Counter): Requests delayed on low quota (warning, critical)
//
// Pagination Metrics (pkg/pagination):
//   - canvas_pages_fetched_total{endpoint} (Counter): Pages fetched
//   - canvas_pagination_records_total{endpoint} (Counter): Records accumulated
//   - canvas_pagination_duration_seconds{endpoint} (Histogram): Duration of complete fetches
//
// Snapshot Metrics (pkg/cache):
//   - canvas_snapshot_loads_total{store, result} (Counter): Loads by result (hit, miss, invalid)
//   - canvas_snapshot_saves_total{store} (Counter): Snapshots persisted
//   - canvas_snapshot_size_bytes{store} (Gauge): Size of the last snapshot read or written
//   - canvas_snapshot_errors_total{store, operation} (Counter): Store failures
//
// Reconciliation Metrics (pkg/gradesync):
//   - canvas_grade_actions_total{reason} (Counter): Rows by reason (missing, changed, unchanged)
//   - canvas_grade_writes_total{result} (Counter): Writes by result (written, dry_run, failed)
//
// Example Prometheus Queries:
//
//   # Snapshot Hit Rate
//   sum(rate(canvas_snapshot_loads_total{result="hit"}[5m])) /
//   sum(rate(canvas_snapshot_loads_total[5m]))
//
//   # Quota Status
//   canvas_rate_limit_remaining < 100
//
//   # Failed Grade Writes
//   increase(canvas_grade_writes_total{result="failed"}[1h])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(canvas_request_duration_seconds_bucket[5m]))
