// Package client provides the Canvas HTTP transport with authentication,
// request rate limiting, quota tracking and error classification.
//
// The client never retries. Failures surface to the caller as errors that
// match errs.ErrTransport; operators re-invoke on transient failures.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/canvas-sync/pkg/errs"
	"github.com/Sternrassler/canvas-sync/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for Canvas client operations.
var (
	canvasRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvas_requests_total",
		Help: "Total Canvas API requests by method and status",
	}, []string{"method", "status"})

	canvasRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "canvas_request_duration_seconds",
		Help:    "Canvas API request duration in seconds by method",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	canvasErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvas_errors_total",
		Help: "Total Canvas API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and Canvas' 403 "Rate Limit Exceeded".
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Authenticator adds credentials to outgoing request headers.
type Authenticator interface {
	AddAuth(headers http.Header)
}

// Config holds the client configuration.
type Config struct {
	// Host is the Canvas instance host name, e.g. "canvas.instructure.com".
	Host string

	// BaseURL overrides Host with a full scheme://host prefix (for tests and proxies).
	BaseURL string

	// Auth adds credentials to every request (REQUIRED).
	Auth Authenticator

	// User-Agent header
	UserAgent string

	// Timeout per request
	Timeout time.Duration

	// Rate Limiting: requests per second, 0 disables the local limiter
	RateLimit float64
	RateBurst int

	// Throttling on low Canvas quota
	Throttle ratelimit.Config
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(host string, auth Authenticator) Config {
	return Config{
		Host:      host,
		Auth:      auth,
		UserAgent: "canvas-sync/0.1.0",
		Timeout:   30 * time.Second,
		RateLimit: 10,
		RateBurst: 5,
		Throttle:  ratelimit.DefaultConfig(),
	}
}

// Client is the Canvas API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// New creates a new Canvas client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Host == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: host is required", errs.ErrInvalidArgument)
	}

	if cfg.Auth == nil {
		return nil, fmt.Errorf("%w: auth is required", errs.ErrInvalidArgument)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("%w: rate_limit must be >= 0 (got %v)", errs.ErrInvalidArgument, cfg.RateLimit)
	}

	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return nil, fmt.Errorf("%w: rate_burst must be >= 1 (got %d)", errs.ErrInvalidArgument, cfg.RateBurst)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://" + cfg.Host
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		limiter: limiter,
		tracker: ratelimit.NewTracker(cfg.Throttle, logger),
		config:  cfg,
		logger:  logger,
	}, nil
}

// Do performs an HTTP request with rate limiting, authentication and error handling.
// A non-2xx response is returned as an *APIError and the response body is closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	// Start request timing
	startTime := time.Now()
	defer func() {
		canvasRequestDuration.WithLabelValues(req.Method).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Local request rate
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	// Step 2: Canvas quota
	if err := c.tracker.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	// Step 3: Headers
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")
	c.config.Auth.AddAuth(req.Header)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing Canvas request")

	// Step 4: Execute
	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, nil, err)
		canvasErrorsTotal.WithLabelValues(string(errClass)).Inc()
		canvasRequestsTotal.WithLabelValues(req.Method, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: errClass,
			Method:     req.Method,
			Endpoint:   endpoint,
			Message:    "request failed",
			Err:        err,
		}
	}

	// Step 5: Quota headers
	if err := c.tracker.UpdateFromHeaders(resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	canvasRequestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()

	// Step 6: Non-success status
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()

		errClass := c.classifyError(resp, body, nil)
		canvasErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Canvas request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Method:     req.Method,
			Endpoint:   endpoint,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	return resp, nil
}

// maxErrorBody bounds the response body kept in an APIError.
const maxErrorBody = 512

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, body []byte, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode == http.StatusForbidden && strings.Contains(string(body), "Rate Limit Exceeded"):
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		// 1xx/3xx are not followed into a 2xx: treat as a client-side problem.
		return ErrorClassClient
	}
}

// URL builds the absolute URL for an API path and query parameters.
func (c *Client) URL(path string, params url.Values) string {
	u := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// GetJSON performs a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path, params), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", errs.ErrParse, path, err)
	}
	return nil
}

// Put performs a PUT request with form parameters in the query string, as
// the Canvas API accepts them. The response body is discarded.
func (c *Client) Put(ctx context.Context, path string, params url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.URL(path, params), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// RateLimitState returns the last known Canvas quota.
func (c *Client) RateLimitState() ratelimit.RateLimitState {
	return c.tracker.State()
}
