package swcache

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Strategy is the caching policy chosen for an intercepted request.
type Strategy string

const (
	// StrategyPassthrough forwards the request untouched (non-GET or
	// non-http(s) scheme).
	StrategyPassthrough Strategy = "passthrough"

	// StrategyNetworkFirst tries the network, caches successes, and falls
	// back to the cached entry or the offline document on failure.
	StrategyNetworkFirst Strategy = "network_first"

	// StrategyCacheFirst serves the cached entry when present and fetches
	// (then caches) only on a miss.
	StrategyCacheFirst Strategy = "cache_first"

	// StrategyNavigateFallback returns live responses verbatim and
	// substitutes the offline document on failure, with no caching.
	StrategyNavigateFallback Strategy = "navigate_fallback"
)

// Config holds the engine configuration.
type Config struct {
	// Origin is the base URL of the storefront (scheme + host).
	Origin string

	// Version is the cache generation name (changes on every deploy).
	Version string

	// DynamicPrefixes are path prefixes served network-first
	// (frequently-changing listings).
	DynamicPrefixes []string

	// StaticPrefixes are path prefixes served cache-first.
	StaticPrefixes []string

	// OfflinePath is the path of the offline fallback document.
	// Must be part of the install manifest.
	OfflinePath string

	// Manifest is the fixed set of paths pre-populated on install.
	Manifest []string

	// HTTPClient is the client used for origin fetches.
	HTTPClient *http.Client
}

// DefaultConfig returns the engine configuration matching the storefront's
// URL layout.
func DefaultConfig(origin, version string) Config {
	return Config{
		Origin:  origin,
		Version: version,
		DynamicPrefixes: []string{
			"/products/api/",
			"/product/api/",
			"/cart/api/",
		},
		StaticPrefixes: []string{
			"/static/",
			"/media/",
		},
		OfflinePath: "/offline/",
		Manifest: []string{
			"/",
			"/offline/",
			"/static/css/main/index.css",
			"/static/js_files/index.js",
			"/static/pwa/manifest.json",
		},
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Engine intercepts requests and applies a caching strategy per URL class.
// It is the only writer of the versioned cache storage.
type Engine struct {
	store      *Store
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// NewEngine creates a cache strategy engine.
func NewEngine(store *Store, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Origin == "" {
		return nil, fmt.Errorf("origin is required")
	}
	if cfg.OfflinePath == "" {
		return nil, fmt.Errorf("offline path is required")
	}

	found := false
	for _, path := range cfg.Manifest {
		if path == cfg.OfflinePath {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("offline path %q must be part of the install manifest", cfg.OfflinePath)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Engine{
		store:      store,
		httpClient: httpClient,
		config:     cfg,
		logger:     log.With().Str("component", "swcache").Logger(),
	}, nil
}

// Store returns the engine's cache store.
func (e *Engine) Store() *Store {
	return e.store
}

// Classify decides the strategy for a request. Rules are evaluated in
// order; first match wins.
func (e *Engine) Classify(req *http.Request) Strategy {
	if req.Method != http.MethodGet {
		return StrategyPassthrough
	}
	if scheme := req.URL.Scheme; scheme != "http" && scheme != "https" {
		return StrategyPassthrough
	}

	path := req.URL.Path
	for _, prefix := range e.config.DynamicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return StrategyNetworkFirst
		}
	}
	for _, prefix := range e.config.StaticPrefixes {
		if strings.HasPrefix(path, prefix) {
			return StrategyCacheFirst
		}
	}

	return StrategyNavigateFallback
}

// Do intercepts a request and serves it with the strategy chosen by
// Classify. For read paths the caller always gets a response: network
// errors are converted into cache or offline-document fallbacks, never
// surfaced as hard failures.
func (e *Engine) Do(req *http.Request) (*http.Response, error) {
	strategy := e.Classify(req)
	StrategyRequests.WithLabelValues(string(strategy)).Inc()

	switch strategy {
	case StrategyNetworkFirst:
		return e.networkFirst(req)
	case StrategyCacheFirst:
		return e.cacheFirst(req)
	case StrategyNavigateFallback:
		return e.navigateFallback(req)
	default:
		return e.httpClient.Do(req)
	}
}

// networkFirst attempts a live fetch and caches the result. On failure it
// serves the cached entry for the exact request, else the offline document.
func (e *Engine) networkFirst(req *http.Request) (*http.Response, error) {
	key := KeyForURL(req.URL)

	resp, err := e.httpClient.Do(req)
	if err == nil {
		e.cacheResponse(req.Context(), key, resp)
		return resp, nil
	}

	e.logger.Warn().
		Err(err).
		Str("path", req.URL.Path).
		Msg("Network fetch failed, falling back to cache")

	cached, cacheErr := e.store.Get(req.Context(), key)
	if cacheErr == nil {
		CacheHits.WithLabelValues(string(StrategyNetworkFirst)).Inc()
		return EntryToResponse(cached), nil
	}

	CacheMisses.WithLabelValues(string(StrategyNetworkFirst)).Inc()
	return e.offlineFallback(req.Context())
}

// cacheFirst serves the cached entry when present; on a miss it fetches,
// caches the clone, and returns the live response. Static assets thus cost
// at most one network round trip per cache generation.
func (e *Engine) cacheFirst(req *http.Request) (*http.Response, error) {
	key := KeyForURL(req.URL)

	cached, err := e.store.Get(req.Context(), key)
	if err == nil {
		CacheHits.WithLabelValues(string(StrategyCacheFirst)).Inc()
		return EntryToResponse(cached), nil
	}

	CacheMisses.WithLabelValues(string(StrategyCacheFirst)).Inc()

	resp, fetchErr := e.httpClient.Do(req)
	if fetchErr != nil {
		e.logger.Warn().
			Err(fetchErr).
			Str("path", req.URL.Path).
			Msg("Cache miss and network fetch failed")
		return e.offlineFallback(req.Context())
	}

	e.cacheResponse(req.Context(), key, resp)
	return resp, nil
}

// navigateFallback returns live navigation responses verbatim; on failure
// it serves the offline document. Navigation responses are never cached.
func (e *Engine) navigateFallback(req *http.Request) (*http.Response, error) {
	resp, err := e.httpClient.Do(req)
	if err == nil {
		return resp, nil
	}

	e.logger.Warn().
		Err(err).
		Str("path", req.URL.Path).
		Msg("Navigation fetch failed, serving offline document")

	return e.offlineFallback(req.Context())
}

// offlineFallback serves the designated offline document from the cache.
func (e *Engine) offlineFallback(ctx context.Context) (*http.Response, error) {
	entry, err := e.store.Get(ctx, Key{Path: e.config.OfflinePath})
	if err != nil {
		return nil, fmt.Errorf("offline document unavailable: %w", err)
	}

	OfflineFallbacks.Inc()
	return EntryToResponse(entry), nil
}

// cacheResponse stores a clone of the response, leaving the response body
// readable for the caller. Cache write failures are logged, not fatal.
func (e *Engine) cacheResponse(ctx context.Context, key Key, resp *http.Response) {
	entry, err := ResponseToEntry(resp)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to clone response for cache")
		return
	}

	if err := e.store.Put(ctx, key, entry); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to cache response")
		return
	}

	e.logger.Debug().
		Str("key", key.String()).
		Int("bytes", len(entry.Data)).
		Msg("Cached response")
}

// Install opens the versioned cache and pre-populates it with the fixed
// manifest. The seed is all-or-nothing: every manifest entry is fetched
// before anything is written, and any fetch failure fails the install.
func (e *Engine) Install(ctx context.Context) error {
	start := time.Now()

	entries := make(map[string]*Entry, len(e.config.Manifest))
	for _, path := range e.config.Manifest {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Origin+path, nil)
		if err != nil {
			InstallsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("install: build request for %s: %w", path, err)
		}

		resp, err := e.httpClient.Do(req)
		if err != nil {
			InstallsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("install: fetch %s: %w", path, err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			InstallsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("install: fetch %s: status %d", path, resp.StatusCode)
		}

		entry, err := ResponseToEntry(resp)
		resp.Body.Close()
		if err != nil {
			InstallsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("install: read %s: %w", path, err)
		}

		entries[path] = entry
	}

	for path, entry := range entries {
		if err := e.store.Put(ctx, Key{Path: path}, entry); err != nil {
			InstallsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("install: store %s: %w", path, err)
		}
	}

	InstallsTotal.WithLabelValues("ok").Inc()
	e.logger.Info().
		Str("version", e.store.Version()).
		Int("assets", len(entries)).
		Dur("duration", time.Since(start)).
		Msg("Cache installed")

	return nil
}

// Activate purges every cache generation except the current one. After
// activation the new generation governs all requests immediately.
func (e *Engine) Activate(ctx context.Context) error {
	purged, err := e.store.Purge(ctx)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	e.logger.Info().
		Str("version", e.store.Version()).
		Strs("purged", purged).
		Msg("Cache activated")

	return nil
}
