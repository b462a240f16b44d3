// Command storefront-proxy runs the offline-capable storefront gateway:
// every request is served through the cache strategy engine, so clients
// behind it keep browsing listings and static assets when the origin is
// unreachable.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/winimarket/storefront-client/pkg/logging"
	"github.com/winimarket/storefront-client/pkg/swcache"
)

type config struct {
	RedisURL     string `env:"REDIS_URL" envDefault:"localhost:6379"`
	Port         string `env:"PORT" envDefault:"8080"`
	Origin       string `env:"ORIGIN" envDefault:"http://localhost:8000"`
	CacheVersion string `env:"CACHE_VERSION" envDefault:"winimarket-static-v1"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty    bool   `env:"LOG_PRETTY" envDefault:"false"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		panic(fmt.Sprintf("parse configuration: %v", err))
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})
	logger = logger.With().Str("component", "proxy").Logger()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("addr", cfg.RedisURL).Msg("Connected to Redis")

	store := swcache.NewStore(redisClient, cfg.CacheVersion)
	engine, err := swcache.NewEngine(store, swcache.DefaultConfig(cfg.Origin, cfg.CacheVersion))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create cache engine")
	}

	// Seed and switch over to the new generation before serving
	if err := engine.Install(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Cache install failed")
	}
	if err := engine.Activate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Cache activation failed")
	}

	http.HandleFunc("/healthz", healthHandler)
	http.HandleFunc("/readyz", readyHandler(redisClient))
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/", proxyHandler(engine, cfg.Origin, logger))

	addr := ":" + cfg.Port
	logger.Info().
		Str("addr", addr).
		Str("origin", cfg.Origin).
		Str("version", cfg.CacheVersion).
		Msg("Starting storefront proxy")

	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports readiness: the proxy can serve once Redis answers.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "redis unavailable: %v", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// proxyHandler forwards every request to the origin through the cache
// strategy engine. Reads come back even when the origin is down; only
// the engine's hard failures (offline document missing) surface as 502.
func proxyHandler(engine *swcache.Engine, origin string, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		target := origin + r.URL.RequestURI()
		req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("build upstream request: %v", err), http.StatusBadRequest)
			return
		}
		req.Header = r.Header.Clone()

		resp, err := engine.Do(req)
		if err != nil {
			logger.Error().Err(err).Str("path", r.URL.Path).Msg("Upstream request failed")
			http.Error(w, fmt.Sprintf("upstream request failed: %v", err), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)

		if _, err := io.Copy(w, resp.Body); err != nil {
			logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to write response")
		}
	}
}
