package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/Sternrassler/canvas-sync/pkg/errs"
	"github.com/rs/zerolog"
)

type staticAuth string

func (a staticAuth) AddAuth(headers http.Header) {
	headers.Set("Authorization", "Bearer "+string(a))
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	cfg := DefaultConfig("", staticAuth("test-token"))
	cfg.BaseURL = serverURL
	cfg.RateLimit = 0

	client, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("canvas.example.edu", staticAuth("t")),
			expectError: false,
		},
		{
			name: "base url instead of host",
			config: Config{
				BaseURL: "http://127.0.0.1:8080",
				Auth:    staticAuth("t"),
			},
			expectError: false,
		},
		{
			name: "missing host",
			config: Config{
				Auth: staticAuth("t"),
			},
			expectError: true,
			errorMsg:    "invalid argument: host is required",
		},
		{
			name: "missing auth",
			config: Config{
				Host: "canvas.example.edu",
			},
			expectError: true,
			errorMsg:    "invalid argument: auth is required",
		},
		{
			name: "negative rate limit",
			config: Config{
				Host:      "canvas.example.edu",
				Auth:      staticAuth("t"),
				RateLimit: -1,
			},
			expectError: true,
			errorMsg:    "invalid argument: rate_limit must be >= 0 (got -1)",
		},
		{
			name: "rate limit without burst",
			config: Config{
				Host:      "canvas.example.edu",
				Auth:      staticAuth("t"),
				RateLimit: 5,
			},
			expectError: true,
			errorMsg:    "invalid argument: rate_burst must be >= 1 (got 0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config, zerolog.Nop())

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if !errors.Is(err, errs.ErrInvalidArgument) {
					t.Errorf("Error = %v, want ErrInvalidArgument", err)
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	auth := staticAuth("t")
	cfg := DefaultConfig("canvas.example.edu", auth)

	if cfg.Host != "canvas.example.edu" {
		t.Errorf("Host = %q, want %q", cfg.Host, "canvas.example.edu")
	}
	if cfg.Auth != auth {
		t.Error("Auth not set correctly")
	}
	if cfg.RateLimit <= 0 {
		t.Errorf("RateLimit = %v, should be > 0", cfg.RateLimit)
	}
	if cfg.RateBurst < 1 {
		t.Errorf("RateBurst = %d, should be >= 1", cfg.RateBurst)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent should not be empty")
	}
}

func TestClassifyError(t *testing.T) {
	client := &Client{logger: zerolog.Nop()}

	tests := []struct {
		name       string
		statusCode int
		body       string
		err        error
		expected   ErrorClass
	}{
		{
			name:     "network error",
			err:      io.EOF,
			expected: ErrorClassNetwork,
		},
		{
			name:       "client error 404",
			statusCode: 404,
			expected:   ErrorClassClient,
		},
		{
			name:       "forbidden",
			statusCode: 403,
			body:       `{"status":"unauthorized"}`,
			expected:   ErrorClassClient,
		},
		{
			name:       "canvas throttling 403",
			statusCode: 403,
			body:       "403 Forbidden (Rate Limit Exceeded)",
			expected:   ErrorClassRateLimit,
		},
		{
			name:       "too many requests",
			statusCode: 429,
			expected:   ErrorClassRateLimit,
		},
		{
			name:       "server error 500",
			statusCode: 500,
			expected:   ErrorClassServer,
		},
		{
			name:       "server error 503",
			statusCode: 503,
			expected:   ErrorClassServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.statusCode > 0 {
				resp = &http.Response{
					StatusCode: tt.statusCode,
				}
			}

			result := client.classifyError(resp, []byte(tt.body), tt.err)
			if result != tt.expected {
				t.Errorf("classifyError() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestDo_HeadersSet(t *testing.T) {
	var authReceived, userAgentReceived, acceptReceived string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authReceived = r.Header.Get("Authorization")
		userAgentReceived = r.Header.Get("User-Agent")
		acceptReceived = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	req, _ := http.NewRequest("GET", server.URL+"/api/v1/users/self", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp.Body.Close()

	if authReceived != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", authReceived, "Bearer test-token")
	}
	if userAgentReceived != client.config.UserAgent {
		t.Errorf("User-Agent = %q, want %q", userAgentReceived, client.config.UserAgent)
	}
	if acceptReceived != "application/json" {
		t.Errorf("Accept = %q, want application/json", acceptReceived)
	}
}

func TestDo_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[{"message":"The specified resource does not exist."}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	req, _ := http.NewRequest("GET", server.URL+"/api/v1/courses/1/users", nil)
	resp, err := client.Do(req)
	if err == nil {
		resp.Body.Close()
		t.Fatal("Expected error for 404 response")
	}

	if !errors.Is(err, errs.ErrTransport) {
		t.Errorf("errors.Is(err, ErrTransport) = false for %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.ErrorClass != ErrorClassClient {
		t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, ErrorClassClient)
	}
	if apiErr.Endpoint != "/api/v1/courses/1/users" {
		t.Errorf("Endpoint = %q", apiErr.Endpoint)
	}
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	client := newTestClient(t, serverURL)

	req, _ := http.NewRequest("GET", serverURL+"/api/v1/users/self", nil)
	_, err := client.Do(req)
	if err == nil {
		t.Fatal("Expected network error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, ErrorClassNetwork)
	}
	if !errors.Is(err, errs.ErrTransport) {
		t.Error("Network error should match ErrTransport")
	}
}

func TestDo_TracksQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Rate-Limit-Remaining", "642.5")
		w.Header().Set("X-Request-Cost", "1.5")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var out []map[string]any
	if err := client.GetJSON(context.Background(), "/api/v1/courses/1/users", nil, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	state := client.RateLimitState()
	if !state.Known || state.Remaining != 642.5 || state.LastCost != 1.5 {
		t.Errorf("RateLimitState() = %+v", state)
	}
}

func TestGetJSON(t *testing.T) {
	var queryReceived url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queryReceived = r.URL.Query()
		w.Write([]byte(`[{"id": 1, "name": "Ada"}, {"id": 2, "name": "Grace"}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	params := url.Values{}
	params.Add("include[]", "email")
	params.Add("include[]", "enrollments")
	params.Set("page", "2")

	var out []map[string]any
	if err := client.GetJSON(context.Background(), "/api/v1/courses/7/users", params, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[1]["name"] != "Grace" {
		t.Errorf("out[1][name] = %v, want Grace", out[1]["name"])
	}
	if got := queryReceived["include[]"]; len(got) != 2 || got[0] != "email" || got[1] != "enrollments" {
		t.Errorf("include[] = %v", got)
	}
	if queryReceived.Get("page") != "2" {
		t.Errorf("page = %q, want 2", queryReceived.Get("page"))
	}
}

func TestGetJSON_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var out []map[string]any
	err := client.GetJSON(context.Background(), "/api/v1/users/self", nil, &out)
	if !errors.Is(err, errs.ErrParse) {
		t.Errorf("GetJSON() error = %v, want ErrParse", err)
	}
}

func TestPut(t *testing.T) {
	var methodReceived, pathReceived string
	var queryReceived url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methodReceived = r.Method
		pathReceived = r.URL.Path
		queryReceived = r.URL.Query()
		w.Write([]byte(`{"id": 99}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	params := url.Values{}
	params.Set("submission[posted_grade]", "85")
	if err := client.Put(context.Background(), "api/v1/courses/1/assignments/2/submissions/3", params); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if methodReceived != http.MethodPut {
		t.Errorf("Method = %q, want PUT", methodReceived)
	}
	if pathReceived != "/api/v1/courses/1/assignments/2/submissions/3" {
		t.Errorf("Path = %q", pathReceived)
	}
	if queryReceived.Get("submission[posted_grade]") != "85" {
		t.Errorf("posted_grade = %q, want 85", queryReceived.Get("submission[posted_grade]"))
	}
}

func TestURL(t *testing.T) {
	client, err := New(DefaultConfig("canvas.example.edu", staticAuth("t")), zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := client.URL("/api/v1/users/self", url.Values{"per_page": []string{"50"}})
	want := "https://canvas.example.edu/api/v1/users/self?per_page=50"
	if got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
