// Package api provides the storefront HTTP+JSON client: product, search,
// cart, wishlist, auth, profile, and push-subscription endpoints with
// error classification, CSRF handling, and read-path memoization.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/winimarket/storefront-client/pkg/memo"
	"github.com/winimarket/storefront-client/pkg/swcache"
)

// Prometheus metrics for storefront API operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_api_requests_total",
		Help: "Total storefront API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_api_request_duration_seconds",
		Help:    "Storefront API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_api_errors_total",
		Help: "Total storefront API errors by class",
	}, []string{"class"})
)

// Doer executes an HTTP request. Both *http.Client and the swcache
// strategy engine satisfy it, so read traffic can be routed through the
// offline cache.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenStore persists the session token pair.
type TokenStore interface {
	SetTokens(ctx context.Context, access, refresh string) error
	Tokens(ctx context.Context) (access, refresh string, err error)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the storefront origin (scheme + host).
	BaseURL string

	// CSRFToken supplies the page-embedded CSRF token attached to every
	// mutating request.
	CSRFToken func() string

	// Location supplies the caller's current location (path + query),
	// used as the return target on authentication redirects.
	Location func() string

	// HTTPClient executes requests. Defaults to an *http.Client with a
	// 30s timeout; pass the swcache engine to serve reads offline.
	HTTPClient Doer

	// Tokens persists the session token pair (optional).
	Tokens TokenStore

	// Memo is the session response memoizer for read paths (optional).
	Memo *memo.Memo

	// Retry configures read-request retries.
	Retry RetryConfig
}

// Client is the storefront API client.
type Client struct {
	baseURL   string
	transport Doer
	csrfToken func() string
	location  func() string
	tokens    TokenStore
	memo      *memo.Memo
	retry     RetryConfig
	logger    zerolog.Logger
}

// New creates a storefront API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	transport := cfg.HTTPClient
	if transport == nil {
		transport = &http.Client{Timeout: 30 * time.Second}
	}

	csrfToken := cfg.CSRFToken
	if csrfToken == nil {
		csrfToken = func() string { return "" }
	}

	location := cfg.Location
	if location == nil {
		location = func() string { return "/" }
	}

	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		transport: transport,
		csrfToken: csrfToken,
		location:  location,
		tokens:    cfg.Tokens,
		memo:      cfg.Memo,
		retry:     retry,
		logger:    log.With().Str("component", "api").Logger(),
	}, nil
}

// getJSON performs a GET with retry and optional memoization. Memoized
// reads are read-through: the memo answers repeats of the same logical
// query for the rest of the session.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, memoize bool) (json.RawMessage, error) {
	memoKey := swcache.Key{Path: path, Query: query}.String()

	if memoize && c.memo != nil {
		if payload, ok := c.memo.Get(memoKey); ok {
			c.logger.Debug().Str("key", memoKey).Msg("Memoized response")
			return payload, nil
		}
	}

	rawURL := c.baseURL + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	var payload json.RawMessage
	err := retryWithBackoff(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return &APIError{ErrorClass: ErrorClassNetwork, Message: "build request", Err: err}
		}
		req.Header.Set("Accept", "application/json")
		c.addAuthHeader(ctx, req)

		resp, err := c.transport.Do(req)
		if err != nil {
			apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			apiRequestsTotal.WithLabelValues(path, "network_error").Inc()
			return &APIError{ErrorClass: ErrorClassNetwork, Message: "fetch", Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &APIError{ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
		}

		apiRequestsTotal.WithLabelValues(path, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if class := classifyStatus(resp.StatusCode); class != "" {
			apiErrorsTotal.WithLabelValues(string(class)).Inc()
			return &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: class,
				Message:    resp.Status,
			}
		}

		payload = body
		return nil
	}, errorClassOf)
	if err != nil {
		return nil, err
	}

	if memoize && c.memo != nil {
		c.memo.Put(memoKey, payload)
	}
	return payload, nil
}

// mutate performs a mutating request. Mutations carry the CSRF token, are
// never retried, and their responses are decoded by field presence: a 200
// can still signal an application-level failure.
func (c *Client) mutate(ctx context.Context, method, path string, body any) (gjson.Result, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CSRFToken", c.csrfToken())
	c.addAuthHeader(ctx, req)

	return c.doMutation(req, path)
}

// mutateMultipart performs a mutating request with multipart form
// encoding for file-bearing payloads.
func (c *Client) mutateMultipart(ctx context.Context, method, path, contentType string, form io.Reader) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, form)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CSRFToken", c.csrfToken())
	c.addAuthHeader(ctx, req)

	return c.doMutation(req, path)
}

func (c *Client) doMutation(req *http.Request, endpoint string) (gjson.Result, error) {
	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.transport.Do(req)
	if err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return gjson.Result{}, &APIError{ErrorClass: ErrorClassNetwork, Message: "fetch", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return gjson.Result{}, &APIError{ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
	}

	apiRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		apiErrorsTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Unauthenticated mutation, redirecting to login")
		return gjson.Result{}, &AuthError{
			StatusCode: resp.StatusCode,
			Next:       c.location(),
		}
	}

	if resp.StatusCode >= 500 {
		apiErrorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
		return gjson.Result{}, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassServer,
			Message:    resp.Status,
		}
	}

	result := gjson.ParseBytes(body)

	if resp.StatusCode >= 400 {
		apiErrorsTotal.WithLabelValues(string(ErrorClassValidation)).Inc()
		return gjson.Result{}, &ValidationError{
			StatusCode: resp.StatusCode,
			Message:    result.Get("error").String(),
			Fields:     fieldErrors(result),
		}
	}

	// Session tokens ride along on auth responses
	c.persistTokens(req.Context(), result)

	return result, nil
}

// fieldErrors extracts the per-field messages of the `errors` response field.
func fieldErrors(result gjson.Result) map[string][]string {
	errsField := result.Get("errors")
	if !errsField.Exists() {
		return nil
	}

	fields := make(map[string][]string)
	errsField.ForEach(func(key, value gjson.Result) bool {
		var messages []string
		if value.IsArray() {
			for _, msg := range value.Array() {
				messages = append(messages, msg.String())
			}
		} else {
			messages = append(messages, value.String())
		}
		fields[key.String()] = messages
		return true
	})
	return fields
}

// persistTokens stores a token pair when the response carries one.
func (c *Client) persistTokens(ctx context.Context, result gjson.Result) {
	if c.tokens == nil {
		return
	}

	access := result.Get("access_token")
	if !access.Exists() {
		return
	}
	refresh := result.Get("refresh_token")

	if err := c.tokens.SetTokens(ctx, access.String(), refresh.String()); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist session tokens")
	}
}

// addAuthHeader attaches the stored access token, if any.
func (c *Client) addAuthHeader(ctx context.Context, req *http.Request) {
	if c.tokens == nil {
		return
	}

	access, _, err := c.tokens.Tokens(ctx)
	if err != nil || access == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+access)
}

// errorClassOf reports the class of a classified error, defaulting to
// network for anything unrecognized.
func errorClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}
