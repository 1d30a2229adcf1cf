// Package ratelimit implements Canvas API quota tracking and request throttling.
// It monitors the X-Rate-Limit-Remaining and X-Request-Cost headers Canvas
// returns on every response to avoid 403 "Rate Limit Exceeded" responses.
package ratelimit

import (
	"time"
)

// Canvas response headers carrying quota information.
const (
	HeaderRemaining   = "X-Rate-Limit-Remaining"
	HeaderRequestCost = "X-Request-Cost"
)

// Thresholds for throttling decisions. Canvas quotas start at 700 units and
// refill continuously.
const (
	// RemainingThresholdCritical applies the long wait when the quota falls below this value.
	RemainingThresholdCritical = 25.0

	// RemainingThresholdWarning applies throttling when the quota falls below this value.
	RemainingThresholdWarning = 100.0

	// RemainingThresholdHealthy indicates normal operation.
	RemainingThresholdHealthy = 300.0
)

// RateLimitState represents the last known Canvas quota.
type RateLimitState struct {
	// Remaining is the quota left, from X-Rate-Limit-Remaining.
	Remaining float64 `json:"remaining"`

	// LastCost is the cost of the most recent request, from X-Request-Cost.
	LastCost float64 `json:"last_cost"`

	// LastUpdate is when this state was last updated.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= RemainingThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`

	// Known is false until the first response carrying quota headers.
	Known bool `json:"known"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalWait returns true if requests should wait for the quota to refill.
func (s *RateLimitState) NeedsCriticalWait() bool {
	return s.Known && s.Remaining < RemainingThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Known && s.Remaining < RemainingThresholdWarning && !s.NeedsCriticalWait()
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = !s.Known || s.Remaining >= RemainingThresholdHealthy
}
