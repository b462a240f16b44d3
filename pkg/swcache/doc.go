// Package swcache provides the storefront's offline request cache with a
// redis backend and versioned generation lifecycle.
//
// The engine intercepts outgoing requests and applies one of three
// strategies chosen by URL classification:
//
//   - network-first for dynamic listings (products, categories, cart reads):
//     live data when online, the last-seen copy when not
//   - cache-first for static assets: at most one network round trip per
//     cache generation
//   - navigate-with-offline-fallback for page navigations: live pages are
//     returned verbatim and never cached; failures serve the offline document
//
// Non-GET requests and non-http(s) schemes pass through untouched.
//
// # Lifecycle
//
// Each deploy ships a new generation name. Install seeds the new
// generation with the fixed asset manifest (all-or-nothing); Activate
// purges every older generation so at most one is ever active.
//
//	store := swcache.NewStore(redisClient, "winimarket-static-v2")
//	engine, err := swcache.NewEngine(store, swcache.DefaultConfig(origin, "winimarket-static-v2"))
//	if err != nil {
//		return err
//	}
//	if err := engine.Install(ctx); err != nil {
//		return err
//	}
//	if err := engine.Activate(ctx); err != nil {
//		return err
//	}
//
// # Request handling
//
//	resp, err := engine.Do(req)
//
// For GET read paths Do never returns a hard network failure while a
// cached copy or the offline document exists.
//
// # Metrics
//
// The package exports prometheus metrics:
//
//   - storefront_strategy_requests_total{strategy} - dispatched requests
//   - storefront_cache_hits_total{strategy} / storefront_cache_misses_total{strategy}
//   - storefront_offline_fallbacks_total - offline document substitutions
//   - storefront_cache_installs_total{outcome} - install attempts
//   - storefront_cache_generations_purged_total - purged generations
package swcache
