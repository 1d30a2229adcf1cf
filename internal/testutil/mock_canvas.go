// Package testutil provides testing utilities for the Canvas client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock Canvas endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// GradeRequest is one recorded PUT to a submission.
type GradeRequest struct {
	CourseID     int64
	AssignmentID int64
	UserID       int64
	// Params holds the raw query parameters, e.g. "submission[posted_grade]".
	Params map[string]string
}

// PostedGrade returns the submission[posted_grade] parameter.
func (g GradeRequest) PostedGrade() string {
	return g.Params["submission[posted_grade]"]
}

// MockCanvas is a configurable mock Canvas server for testing.
//
// List endpoints registered with SetRoster and SetSubmissions serve their
// records in pages according to the page and per_page parameters, and return
// an empty array past the end.
type MockCanvas struct {
	server   *httptest.Server
	mux      *http.ServeMux
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	Grades            []GradeRequest
	failGrades        map[int64]int

	// Remaining is reported in X-Rate-Limit-Remaining.
	Remaining float64
}

// NewMockCanvas creates a new mock Canvas server.
func NewMockCanvas() *MockCanvas {
	mock := &MockCanvas{
		mux:        http.NewServeMux(),
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		failGrades: make(map[int64]int),
		Remaining:  700,
	}

	mock.mux.HandleFunc("PUT /api/v1/courses/{cid}/assignments/{aid}/submissions/{uid}", mock.gradeHandler)

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		remaining := mock.Remaining
		mock.mu.Unlock()

		w.Header().Set("X-Rate-Limit-Remaining", strconv.FormatFloat(remaining, 'f', 1, 64))
		w.Header().Set("X-Request-Cost", "0.5")

		// Check for custom handler
		mock.mu.RLock()
		handler, exists := mock.handlers[r.Method+" "+r.URL.Path]
		if !exists {
			handler, exists = mock.handlers[r.URL.Path]
		}
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.mux.ServeHTTP(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCanvas) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCanvas) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCanvas) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.Grades = nil
}

// SetHandler sets a custom handler for a path, optionally prefixed with a
// method ("GET /api/v1/users/self").
func (m *MockCanvas) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockCanvas) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		// Add delay if specified
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		// Set headers
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		// Write status and body
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetSelf configures the /api/v1/users/self profile.
func (m *MockCanvas) SetSelf(profile map[string]any) {
	m.SetHandler("GET /api/v1/users/self", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, profile)
	})
}

// SetRoster configures the paginated users endpoint of a course.
func (m *MockCanvas) SetRoster(courseID int64, users []map[string]any) {
	path := fmt.Sprintf("/api/v1/courses/%d/users", courseID)
	m.SetHandler("GET "+path, NewPagedHandler(users))
}

// SetSubmissions configures the paginated submissions endpoint of an assignment.
func (m *MockCanvas) SetSubmissions(courseID, assignmentID int64, submissions []map[string]any) {
	path := fmt.Sprintf("/api/v1/courses/%d/assignments/%d/submissions", courseID, assignmentID)
	m.SetHandler("GET "+path, NewPagedHandler(submissions))
}

// FailGrade makes the next n grade PUTs for userID fail with 500.
func (m *MockCanvas) FailGrade(userID int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGrades[userID] = n
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCanvas) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetGrades returns the recorded grade requests in arrival order.
func (m *MockCanvas) GetGrades() []GradeRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]GradeRequest(nil), m.Grades...)
}

func (m *MockCanvas) gradeHandler(w http.ResponseWriter, r *http.Request) {
	cid, err1 := strconv.ParseInt(r.PathValue("cid"), 10, 64)
	aid, err2 := strconv.ParseInt(r.PathValue("aid"), 10, 64)
	uid, err3 := strconv.ParseInt(r.PathValue("uid"), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"errors": []map[string]string{{"message": "The specified resource does not exist."}}})
		return
	}

	m.mu.Lock()
	if m.failGrades[uid] > 0 {
		m.failGrades[uid]--
		m.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]any{"errors": []map[string]string{{"message": "An error occurred."}}})
		return
	}

	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	m.Grades = append(m.Grades, GradeRequest{
		CourseID:     cid,
		AssignmentID: aid,
		UserID:       uid,
		Params:       params,
	})
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       uid,
		"assignment_id": aid,
		"grade":         params["submission[posted_grade]"],
	})
}

// NewPagedHandler serves records in pages selected by the page (1-based) and
// per_page query parameters. per_page defaults to 10 as on Canvas.
func NewPagedHandler(records []map[string]any) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
		if err != nil || perPage < 1 {
			perPage = 10
		}

		start := (page - 1) * perPage
		if start > len(records) {
			start = len(records)
		}
		end := start + perPage
		if end > len(records) {
			end = len(records)
		}

		writeJSON(w, http.StatusOK, records[start:end])
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NewHealthyResponse creates a standard 200 OK response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates Canvas' 403 throttling response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       "403 Forbidden (Rate Limit Exceeded)",
		Headers: map[string]string{
			"X-Rate-Limit-Remaining": "0.0",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors": [{"message": "An error occurred."}]}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 response for an invalid token.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"errors": [{"message": "Invalid access token."}]}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
