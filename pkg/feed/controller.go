package feed

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	feedFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_feed_fetches_total",
		Help: "Total feed page fetches by feed and outcome",
	}, []string{"feed", "outcome"})

	feedStaleDiscardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_feed_stale_discarded_total",
		Help: "Total stale-generation results discarded by feed",
	}, []string{"feed"})

	feedFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_feed_fetch_duration_seconds",
		Help:    "Feed page fetch duration in seconds by feed",
		Buckets: []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"feed"})
)

// Page is one page of feed results as the server reports it.
type Page struct {
	Results  []json.RawMessage `json:"results"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Count    int               `json:"count"`
}

// PageFetcher fetches a single page of results for a filter set.
type PageFetcher interface {
	FetchPage(ctx context.Context, filters url.Values, page int) (*Page, error)
}

// Renderer receives the presentation-side effects of the controller.
// Append/NoResults arrive after the latency-smoothing hold; the
// controller's state is final before the hold starts.
type Renderer interface {
	// ShowSkeletons displays count skeleton placeholders; append keeps
	// already-rendered items and shows a bottom loader instead.
	ShowSkeletons(count int, append bool)

	// HideLoader removes skeletons and the bottom loader.
	HideLoader()

	// Append adds a page of results after existing items.
	Append(results []json.RawMessage)

	// NoResults shows the empty state (only ever for an empty first page).
	NoResults()
}

// NoopRenderer discards all rendering calls (headless use and tests).
type NoopRenderer struct{}

func (NoopRenderer) ShowSkeletons(int, bool)  {}
func (NoopRenderer) HideLoader()              {}
func (NoopRenderer) Append([]json.RawMessage) {}
func (NoopRenderer) NoResults()               {}

// Config holds controller configuration.
type Config struct {
	// Name identifies the feed in logs and metrics ("products", "search").
	Name string

	// SkeletonCount is how many skeleton cards to show for a fresh load.
	SkeletonCount int
}

// DefaultConfig returns the controller configuration for a named feed.
func DefaultConfig(name string) Config {
	return Config{
		Name:          name,
		SkeletonCount: 8,
	}
}

// Controller owns the pagination state of one feed and coordinates
// sequential page fetches. All methods are safe for concurrent use; the
// Loading guard keeps fetches strictly sequential per controller.
type Controller struct {
	mu       sync.Mutex
	state    State
	fetcher  PageFetcher
	renderer Renderer
	config   Config
	logger   zerolog.Logger

	// sleep is the latency-smoothing hold; replaceable in tests.
	sleep func(time.Duration)
}

// NewController creates a feed controller in Idle(page=1, hasMore=true).
func NewController(fetcher PageFetcher, renderer Renderer, cfg Config) *Controller {
	if renderer == nil {
		renderer = NoopRenderer{}
	}
	if cfg.SkeletonCount <= 0 {
		cfg.SkeletonCount = 8
	}
	return &Controller{
		state: State{
			Page:    1,
			HasMore: true,
			Filters: url.Values{},
		},
		fetcher:  fetcher,
		renderer: renderer,
		config:   cfg,
		logger:   log.With().Str("component", "feed").Str("feed", cfg.Name).Logger(),
		sleep:    time.Sleep,
	}
}

// State returns a snapshot of the current pagination state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := c.state
	snapshot.Filters = cloneFilters(c.state.Filters)
	return snapshot
}

// Reset returns the feed to page 1 with a new filter set. It does not
// trigger a fetch and does not abort an in-flight one; the generation
// bump makes any late result from before the reset discardable.
func (c *Controller) Reset(filters url.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Page = 1
	c.state.HasMore = true
	c.state.Loading = false
	c.state.Filters = cloneFilters(filters)
	c.state.Generation++

	c.logger.Debug().
		Uint64("generation", c.state.Generation).
		Msg("Pagination reset")
}

// LoadNext fetches and appends the next page. It is a no-op (false, nil)
// while a fetch is in flight or after exhaustion, which makes rapid
// repeated triggers idempotent without debouncing.
func (c *Controller) LoadNext(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if !c.state.CanLoad() {
		c.mu.Unlock()
		return false, nil
	}
	c.state.Loading = true
	generation := c.state.Generation
	page := c.state.Page
	filters := cloneFilters(c.state.Filters)
	c.mu.Unlock()

	appending := page > 1
	c.renderer.ShowSkeletons(c.config.SkeletonCount, appending)

	start := time.Now()
	result, err := c.fetcher.FetchPage(ctx, filters, page)
	elapsed := time.Since(start)
	feedFetchDuration.WithLabelValues(c.config.Name).Observe(elapsed.Seconds())

	c.mu.Lock()
	if generation != c.state.Generation {
		// A reset happened while this fetch was in flight. The reset
		// already cleared Loading; drop the result without touching state.
		c.mu.Unlock()
		feedStaleDiscardedTotal.WithLabelValues(c.config.Name).Inc()
		c.logger.Debug().
			Int("page", page).
			Uint64("generation", generation).
			Msg("Discarding stale page result")
		return false, nil
	}

	if err != nil {
		c.state.Loading = false
		c.mu.Unlock()
		feedFetchesTotal.WithLabelValues(c.config.Name, "error").Inc()
		c.renderer.HideLoader()
		c.logger.Warn().Err(err).Int("page", page).Msg("Page fetch failed")
		return false, err
	}

	empty := len(result.Results) == 0
	firstPage := page == 1

	if empty {
		c.state.HasMore = false
	} else {
		c.state.HasMore = result.Next != nil
		if c.state.HasMore {
			c.state.Page++
		}
	}
	c.state.Loading = false
	c.mu.Unlock()

	feedFetchesTotal.WithLabelValues(c.config.Name, "ok").Inc()

	// Presentation only: state is already final.
	if hold := holdFor(elapsed); hold > 0 {
		c.sleep(hold)
	}
	c.renderer.HideLoader()

	switch {
	case empty && firstPage:
		c.renderer.NoResults()
	case empty:
		// Exhausted beyond page 1: previously rendered items stay.
	default:
		c.renderer.Append(result.Results)
	}

	c.logger.Debug().
		Int("page", page).
		Int("results", len(result.Results)).
		Bool("has_more", !empty && result.Next != nil).
		Dur("elapsed", elapsed).
		Msg("Page loaded")

	return true, nil
}
