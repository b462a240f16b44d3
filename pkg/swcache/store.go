package swcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the cache.
	// A miss is not a failure; it is the trigger to fetch.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Redis key layout for the versioned cache storage.
const (
	versionRegistryKey = "swcache:versions"
	keySetSuffix       = ":__keys"
)

// Store is a redis-backed response cache bound to one cache generation
// (e.g. "winimarket-static-v1"). Entries never expire on their own;
// the only eviction is a purge of superseded generations on activation.
type Store struct {
	redis   *redis.Client
	version string
}

// NewStore creates a cache store for the given generation name.
func NewStore(redisClient *redis.Client, version string) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if version == "" {
		panic("cache version cannot be empty")
	}
	return &Store{
		redis:   redisClient,
		version: version,
	}
}

// Version returns the generation name this store is bound to.
func (s *Store) Version() string {
	return s.version
}

func (s *Store) entryKey(key Key) string {
	return fmt.Sprintf("swcache:%s:%s", s.version, key.String())
}

func (s *Store) keySetKey(version string) string {
	return "swcache:" + version + keySetSuffix
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (s *Store) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := s.redis.Get(ctx, s.entryKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return &entry, nil
}

// Put stores a cache entry under the current generation, overwriting any
// prior value. The key is tracked in the generation's key set so that a
// later purge removes the whole generation in one pass.
func (s *Store) Put(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	entryKey := s.entryKey(key)

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, entryKey, data, 0)
	pipe.SAdd(ctx, s.keySetKey(s.version), entryKey)
	pipe.SAdd(ctx, versionRegistryKey, s.version)
	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis put: %w", err)
	}

	return nil
}

// Delete removes a cache entry from the current generation.
func (s *Store) Delete(ctx context.Context, key Key) error {
	entryKey := s.entryKey(key)

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, entryKey)
	pipe.SRem(ctx, s.keySetKey(s.version), entryKey)
	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// Versions lists every cache generation currently present in storage.
func (s *Store) Versions(ctx context.Context) ([]string, error) {
	versions, err := s.redis.SMembers(ctx, versionRegistryKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	return versions, nil
}

// Purge deletes every generation whose name differs from the store's own.
// Returns the names of the generations removed.
func (s *Store) Purge(ctx context.Context) ([]string, error) {
	versions, err := s.Versions(ctx)
	if err != nil {
		return nil, err
	}

	var purged []string
	for _, version := range versions {
		if version == s.version {
			continue
		}

		keySet := s.keySetKey(version)
		keys, err := s.redis.SMembers(ctx, keySet).Result()
		if err != nil {
			CacheErrors.WithLabelValues("purge").Inc()
			return purged, fmt.Errorf("redis smembers %s: %w", keySet, err)
		}

		pipe := s.redis.TxPipeline()
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, keySet)
		pipe.SRem(ctx, versionRegistryKey, version)
		if _, err := pipe.Exec(ctx); err != nil {
			CacheErrors.WithLabelValues("purge").Inc()
			return purged, fmt.Errorf("redis purge %s: %w", version, err)
		}

		purged = append(purged, version)
		GenerationsPurged.Inc()
	}

	return purged, nil
}
