// Package memo provides a session-scoped response memoizer keyed by
// normalized request identity.
//
// The memoizer avoids redundant network calls for identical logical
// queries within one session. It has no TTL and no eviction: product and
// category data is low-churn within a session, and a full reload is the
// only eviction event. Put overwrites unconditionally (last write wins).
//
// Concurrent callers fetching the same key before either has stored are
// not collapsed into a single network call; callers either request
// sequentially or accept the redundant fetch.
package memo

import (
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	memoHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_memo_hits_total",
		Help: "Total number of response memoizer hits",
	})

	memoMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_memo_misses_total",
		Help: "Total number of response memoizer misses",
	})
)

// Memo maps request keys to decoded JSON payloads for the lifetime of a
// session.
type Memo struct {
	mu      sync.RWMutex
	entries map[string]json.RawMessage
}

// New creates an empty memoizer.
func New() *Memo {
	return &Memo{
		entries: make(map[string]json.RawMessage),
	}
}

// Get returns the memoized payload for key, if present.
func (m *Memo) Get(key string) (json.RawMessage, bool) {
	m.mu.RLock()
	payload, ok := m.entries[key]
	m.mu.RUnlock()

	if ok {
		memoHits.Inc()
	} else {
		memoMisses.Inc()
	}
	return payload, ok
}

// Put stores the payload for key, overwriting any prior entry.
func (m *Memo) Put(key string, payload json.RawMessage) {
	m.mu.Lock()
	m.entries[key] = payload
	m.mu.Unlock()
}

// Len returns the number of memoized entries.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
