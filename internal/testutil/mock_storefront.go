// Package testutil provides testing utilities for the storefront client.
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

// MockResponse defines the behavior for a mock storefront endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockStorefront is a configurable mock storefront origin for testing.
type MockStorefront struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Authenticated controls the auth gate: when false, mutating
	// requests receive 401.
	Authenticated bool

	// Tracking
	RequestCount      int
	MutationCount     int
	LastRequestHeader http.Header
}

// NewMockStorefront creates a new mock storefront server. It serves the
// static install manifest (root document, offline document, styles,
// app script, web manifest) by default; API endpoints are registered
// per test with SetHandler/SetResponse.
func NewMockStorefront() *MockStorefront {
	mock := &MockStorefront{
		handlers:      make(map[string]func(w http.ResponseWriter, r *http.Request)),
		Authenticated: true,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			mock.MutationCount++
		}
		authenticated := mock.Authenticated
		mock.mu.Unlock()

		if !authenticated && r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		// Check for custom handler
		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		// Default handler
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockStorefront) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockStorefront) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockStorefront) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.MutationCount = 0
	m.LastRequestHeader = nil
}

// SetAuthenticated toggles the auth gate for mutating requests.
func (m *MockStorefront) SetAuthenticated(authenticated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Authenticated = authenticated
}

// SetHandler sets a custom handler for a specific path.
func (m *MockStorefront) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockStorefront) SetResponse(path string, resp MockResponse) {
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

// GetRequestCount returns the number of requests made to the server.
func (m *MockStorefront) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetMutationCount returns the number of mutating requests made.
func (m *MockStorefront) GetMutationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.MutationCount
}

// defaultHandler serves the static install surface and a generic JSON
// body for anything unregistered.
func (m *MockStorefront) defaultHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>WiniMarket</body></html>"))
	case "/offline/":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>You are offline</body></html>"))
	case "/static/css/styles.css":
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte("body{margin:0}"))
	case "/static/js/app.js":
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte("console.log('app')"))
	case "/manifest.json":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"WiniMarket","start_url":"/"}`))
	default:
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"status": "ok"}`))
	}
}

// DefaultManifest returns the install manifest the default handler can
// serve in full.
func DefaultManifest() []string {
	return []string{
		"/",
		"/offline/",
		"/static/css/styles.css",
		"/static/js/app.js",
		"/manifest.json",
	}
}

// NewPagedProductsHandler serves a DRF-style paginated product listing
// of total items in pages of pageSize. The ?page= query selects the page;
// next/previous cursors are relative query strings.
func NewPagedProductsHandler(total, pageSize int) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				page = parsed
			}
		}

		startIdx := (page - 1) * pageSize
		endIdx := startIdx + pageSize
		if endIdx > total {
			endIdx = total
		}

		results := make([]json.RawMessage, 0, pageSize)
		for i := startIdx; i < endIdx; i++ {
			results = append(results,
				json.RawMessage(fmt.Sprintf(`{"id":%d,"name":"Product %d"}`, i+1, i+1)))
		}

		body := map[string]any{
			"results":  results,
			"count":    total,
			"next":     nil,
			"previous": nil,
		}
		if endIdx < total {
			body["next"] = fmt.Sprintf("?page=%d", page+1)
		}
		if page > 1 {
			body["previous"] = fmt.Sprintf("?page=%d", page-1)
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(body)
	}
}

// NewHealthyResponse creates a standard 200 OK JSON response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewValidationErrorResponse creates a 400 response with per-field errors.
func NewValidationErrorResponse(field, message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       fmt.Sprintf(`{"error": "invalid request", "errors": {"%s": ["%s"]}}`, field, message),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMembershipHandler creates a mutation handler that answers with the
// given authoritative membership flag regardless of the request.
func NewMembershipHandler(flagName string, inSet bool) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprintf(w, `{"%s": %t}`, flagName, inSet)
	}
}
