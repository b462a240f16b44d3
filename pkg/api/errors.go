package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// LoginPath is the authentication entry point unauthenticated mutations
// are redirected to.
const LoginPath = "/account/login/"

// ErrorClass classifies request failures per the client's error taxonomy.
type ErrorClass string

const (
	// ErrorClassNetwork represents network failures (offline, DNS, timeout).
	// Read paths recover these locally via cache/fallback substitution.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassAuth represents 401/403 responses. Never recovered; the
	// caller redirects to login with a return target.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassValidation represents 4xx responses carrying per-field
	// errors. Surfaced inline; store state unchanged.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassServer represents 5xx or malformed payloads.
	ErrorClassServer ErrorClass = "server"
)

// APIError is a request failure with its classification.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storefront %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("storefront %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// AuthError is a 401/403 response to a mutation. The operation is
// abandoned with no local state change; Redirect carries the caller's
// pre-mutation location as the return target.
type AuthError struct {
	StatusCode int

	// Next is the location to return to after authentication.
	Next string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication required (status %d)", e.StatusCode)
}

// Redirect returns the login URL carrying the return target.
func (e *AuthError) Redirect() string {
	next := e.Next
	if next == "" {
		next = "/"
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

// ValidationError is a 4xx response carrying per-field error messages.
type ValidationError struct {
	StatusCode int
	Message    string

	// Fields maps field name to its error messages.
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("validation failed (status %d): %s", e.StatusCode, e.Message)
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed (status %d): fields %s", e.StatusCode, strings.Join(names, ", "))
}

// classifyStatus maps an HTTP status to an error class. Only statuses
// >= 400 classify; success statuses return "".
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorClassAuth
	case status >= 400 && status < 500:
		return ErrorClassValidation
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// shouldRetry determines if an error class is retriable.
// Auth and validation failures are never retried.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassNetwork, ErrorClassServer:
		return true
	default:
		return false
	}
}
