// Package feed implements the paginated feed controller: single-flighted
// "load next page" coordination for list views with latency-smoothed
// skeleton display and generation-tagged fetches.
package feed

import (
	"net/url"
	"time"
)

// Latency smoothing thresholds. A fetch that completes fast enough holds
// the skeleton UI a little longer so it does not flicker; a slow fetch
// gets no artificial hold on top of the real wait.
const (
	fastFetchThreshold = 300 * time.Millisecond
	slowFetchThreshold = 1000 * time.Millisecond

	fastFetchHold   = 400 * time.Millisecond
	mediumFetchHold = 200 * time.Millisecond
)

// State is the pagination state of one feed.
type State struct {
	// Page is the next page to request (1-based).
	Page int `json:"page"`

	// Loading is true for the entire duration of exactly one in-flight
	// page fetch.
	Loading bool `json:"loading"`

	// HasMore is false once the server reports no further pages; it stays
	// false until the filters change or pagination is reset.
	HasMore bool `json:"has_more"`

	// Filters is the active filter set (category_id, min_price, condition, q).
	Filters url.Values `json:"filters"`

	// Generation increments on every Reset. Results arriving under an
	// older generation are discarded.
	Generation uint64 `json:"generation"`
}

// CanLoad returns true if a new page fetch may start.
func (s *State) CanLoad() bool {
	return !s.Loading && s.HasMore
}

// Exhausted returns true once the feed has no further pages.
func (s *State) Exhausted() bool {
	return !s.HasMore
}

// holdFor returns the artificial skeleton hold for a fetch that took
// elapsed: under 300ms gets 400ms, 300-1000ms gets 200ms, slower gets none.
func holdFor(elapsed time.Duration) time.Duration {
	switch {
	case elapsed < fastFetchThreshold:
		return fastFetchHold
	case elapsed < slowFetchThreshold:
		return mediumFetchHold
	default:
		return 0
	}
}

func cloneFilters(filters url.Values) url.Values {
	clone := make(url.Values, len(filters))
	for key, values := range filters {
		clone[key] = append([]string(nil), values...)
	}
	return clone
}
