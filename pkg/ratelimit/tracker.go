package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	canvasRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canvas_rate_limit_remaining",
		Help: "Canvas API quota remaining as reported by X-Rate-Limit-Remaining",
	})

	canvasRateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvas_rate_limit_waits_total",
		Help: "Total number of requests delayed due to a low Canvas quota by severity",
	}, []string{"severity"})
)

// Config holds the waits applied when the quota runs low.
type Config struct {
	// ThrottleDelay is applied below RemainingThresholdWarning.
	ThrottleDelay time.Duration

	// CriticalDelay is applied below RemainingThresholdCritical.
	CriticalDelay time.Duration

	// MaxAge bounds how long a quota reading is trusted. Canvas refills the
	// bucket continuously, so an older low reading no longer throttles.
	MaxAge time.Duration
}

// DefaultConfig returns the default throttle delays.
func DefaultConfig() Config {
	return Config{
		ThrottleDelay: 1 * time.Second,
		CriticalDelay: 5 * time.Second,
		MaxAge:        time.Minute,
	}
}

// Tracker monitors the Canvas quota and delays requests when it runs low.
// It is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	state  RateLimitState
	config Config
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewTracker creates a new rate limit tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.ThrottleDelay <= 0 {
		cfg.ThrottleDelay = DefaultConfig().ThrottleDelay
	}
	if cfg.CriticalDelay <= 0 {
		cfg.CriticalDelay = DefaultConfig().CriticalDelay
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultConfig().MaxAge
	}
	t := &Tracker{
		config: cfg,
		logger: logger,
		sleep:  sleepContext,
	}
	t.state.UpdateHealth()
	return t
}

// State returns a copy of the current state.
func (t *Tracker) State() RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UpdateFromHeaders parses Canvas quota headers and updates the state.
// Responses without quota headers leave the state unchanged.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.ParseFloat(remainStr, 64)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	var cost float64
	if costStr := headers.Get(HeaderRequestCost); costStr != "" {
		cost, err = strconv.ParseFloat(costStr, 64)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderRequestCost, err)
		}
	}

	t.mu.Lock()
	t.state = RateLimitState{
		Remaining:  remain,
		LastCost:   cost,
		LastUpdate: time.Now(),
		Known:      true,
	}
	t.state.UpdateHealth()
	state := t.state
	t.mu.Unlock()

	canvasRateLimitRemaining.Set(remain)

	t.logger.Debug().
		Float64("remaining", state.Remaining).
		Float64("cost", state.LastCost).
		Bool("is_healthy", state.IsHealthy).
		Msg("Canvas quota updated")

	return nil
}

// Wait delays the caller when the quota is low. It returns early with the
// context error if ctx is cancelled.
func (t *Tracker) Wait(ctx context.Context) error {
	state := t.State()
	if state.Known && state.IsStale(t.config.MaxAge) {
		t.logger.Debug().
			Float64("remaining", state.Remaining).
			Time("last_update", state.LastUpdate).
			Msg("Canvas quota reading is stale - not throttling")
		return nil
	}

	var delay time.Duration
	var severity string
	switch {
	case state.NeedsCriticalWait():
		delay, severity = t.config.CriticalDelay, "critical"
		t.logger.Warn().
			Float64("remaining", state.Remaining).
			Dur("wait_duration", delay).
			Msg("Canvas quota critical - waiting for refill")
	case state.NeedsThrottling():
		delay, severity = t.config.ThrottleDelay, "warning"
		t.logger.Warn().
			Float64("remaining", state.Remaining).
			Msg("Canvas quota low - throttling request")
	default:
		return nil
	}

	canvasRateLimitWaitsTotal.WithLabelValues(severity).Inc()
	return t.sleep(ctx, delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
