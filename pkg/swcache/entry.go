package swcache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Entry is a cached HTTP response. Entries carry no expiry: eviction
// happens only when the cache generation is superseded and purged.
type Entry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// ResponseToEntry converts an HTTP response to an Entry.
// It reads the response body and restores it for the caller, so storing
// a response never consumes it (the "clone" step of the strategies).
func ResponseToEntry(resp *http.Response) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &Entry{
		Data:       body,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		CachedAt:   time.Now(),
	}, nil
}

// EntryToResponse converts an Entry back into an HTTP response.
func EntryToResponse(entry *Entry) *http.Response {
	if entry == nil {
		return nil
	}

	headers := entry.Headers
	if headers == nil {
		headers = http.Header{}
	}

	return &http.Response{
		StatusCode:    entry.StatusCode,
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
		Header:        headers.Clone(),
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}
}
