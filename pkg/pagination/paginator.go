package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Defaults for Canvas list endpoints.
const (
	DefaultPageSize = 50
	DefaultDelay    = 500 * time.Millisecond
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvas_pages_fetched_total",
		Help: "Total number of list pages fetched by endpoint",
	}, []string{"endpoint"})

	paginationRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvas_pagination_records_total",
		Help: "Total number of records accumulated by pagination by endpoint",
	}, []string{"endpoint"})

	paginationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "canvas_pagination_duration_seconds",
		Help:    "Duration of complete paginated fetches by endpoint",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"endpoint"})
)

// Config holds paginator configuration.
type Config struct {
	// PageSize is sent as per_page on every request.
	PageSize int
	// Delay is waited after every page fetch, including the final empty one.
	Delay time.Duration
}

// DefaultConfig returns safe default configuration for Canvas.
func DefaultConfig() Config {
	return Config{
		PageSize: DefaultPageSize,
		Delay:    DefaultDelay,
	}
}

// PageFunc fetches one page. page is 1-based.
type PageFunc[T any] func(ctx context.Context, page, perPage int) ([]T, error)

// Paginator drives a PageFunc until it returns an empty page.
type Paginator[T any] struct {
	config Config
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a paginator. A non-positive page size falls back to
// DefaultPageSize; a negative delay is treated as zero.
func New[T any](config Config, logger zerolog.Logger) *Paginator[T] {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.Delay < 0 {
		config.Delay = 0
	}

	return &Paginator[T]{
		config: config,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Config returns the effective configuration.
func (p *Paginator[T]) Config() Config {
	return p.config
}

// FetchAll fetches pages 1, 2, ... until fetch returns zero records and
// returns all records in page order. endpoint labels logs and metrics only.
//
// There is no upper bound on the number of pages. A fetch error is returned
// immediately with no records. If ctx is cancelled between requests, the
// records accumulated so far are returned together with the context error;
// a cancel after the empty page has been received is not an error.
func (p *Paginator[T]) FetchAll(ctx context.Context, endpoint string, fetch PageFunc[T]) ([]T, error) {
	start := time.Now()
	results := make([]T, 0)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("pagination of %s cancelled before page %d: %w", endpoint, page, err)
		}

		records, err := fetch(ctx, page, p.config.PageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch %s page %d: %w", endpoint, page, err)
		}
		pagesFetchedTotal.WithLabelValues(endpoint).Inc()

		p.logger.Debug().
			Str("endpoint", endpoint).
			Int("page", page).
			Int("records", len(records)).
			Msg("Page fetched")

		results = append(results, records...)

		// A cancel during the wait after the empty page still leaves a
		// complete collection.
		if err := p.sleep(ctx, p.config.Delay); err != nil && len(records) > 0 {
			return results, fmt.Errorf("pagination of %s cancelled after page %d: %w", endpoint, page, err)
		}

		if len(records) == 0 {
			paginationRecordsTotal.WithLabelValues(endpoint).Add(float64(len(results)))
			paginationDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

			p.logger.Info().
				Str("endpoint", endpoint).
				Int("pages", page).
				Int("records", len(results)).
				Dur("duration", time.Since(start)).
				Msg("Fetch complete")

			return results, nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
