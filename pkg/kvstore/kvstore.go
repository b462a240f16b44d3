// Package kvstore provides the client's persistent key-value state:
// session tokens and the per-category image URL cache. Entries have
// indefinite TTL and are invalidated only by explicit overwrite.
package kvstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis keys for persisted client state.
const (
	keyAccessToken  = "client:auth:access_token"
	keyRefreshToken = "client:auth:refresh_token"
	keyCategoryImg  = "client:category_image:"
)

// Store is the redis-backed client key-value store.
type Store struct {
	redis *redis.Client
}

// New creates a client state store.
func New(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{redis: redisClient}
}

// SetTokens persists the session token pair.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, keyAccessToken, access, 0)
	pipe.Set(ctx, keyRefreshToken, refresh, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

// Tokens returns the persisted token pair. Missing tokens come back as
// empty strings, not errors.
func (s *Store) Tokens(ctx context.Context) (access, refresh string, err error) {
	access, err = s.redis.Get(ctx, keyAccessToken).Result()
	if err != nil && err != redis.Nil {
		return "", "", fmt.Errorf("read access token: %w", err)
	}

	refresh, err = s.redis.Get(ctx, keyRefreshToken).Result()
	if err != nil && err != redis.Nil {
		return access, "", fmt.Errorf("read refresh token: %w", err)
	}

	return access, refresh, nil
}

// ClearTokens removes the persisted token pair.
func (s *Store) ClearTokens(ctx context.Context) error {
	if err := s.redis.Del(ctx, keyAccessToken, keyRefreshToken).Err(); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// SetCategoryImage stores the resolved image URL for a category name.
func (s *Store) SetCategoryImage(ctx context.Context, category, url string) error {
	if err := s.redis.Set(ctx, keyCategoryImg+category, url, 0).Err(); err != nil {
		return fmt.Errorf("persist category image: %w", err)
	}
	return nil
}

// CategoryImage returns the cached image URL for a category name.
func (s *Store) CategoryImage(ctx context.Context, category string) (string, bool, error) {
	url, err := s.redis.Get(ctx, keyCategoryImg+category).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read category image: %w", err)
	}
	return url, true, nil
}
