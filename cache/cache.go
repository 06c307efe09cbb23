// Package cache provides TTL key/value stores used to avoid redundant
// upstream calls. Caching is an optimization: when a backend is
// unreachable the helpers degrade to fetching directly.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Store is the TTL key/value contract every backend implements.
// Get reports (data, found, err); an expired entry is a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetCachedData returns the cached value for key when fresh, otherwise
// invokes fetch, stores the result with the given TTL and returns it.
// Backend failures on either side are logged and the fetch result is
// returned uncached. Concurrent callers missing on the same key may
// each invoke fetch; the last write wins.
func GetCachedData[T any](ctx context.Context, store Store, logger *slog.Logger, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if store != nil {
		data, found, err := store.Get(ctx, key)
		if err != nil {
			logger.Warn("cache read failed, fetching directly", "key", key, "error", err)
		} else if found {
			var value T
			if err := json.Unmarshal(data, &value); err == nil {
				return value, nil
			}
			logger.Warn("discarding undecodable cache entry", "key", key)
		}
	}

	value, err := fetch(ctx)
	if err != nil {
		return zero, err
	}

	if store != nil {
		data, err := json.Marshal(value)
		if err != nil {
			logger.Warn("cache encode failed", "key", key, "error", err)
			return value, nil
		}
		if err := store.Set(ctx, key, data, ttl); err != nil {
			logger.Warn("cache write failed", "key", key, "error", err)
		}
	}

	return value, nil
}

// Key builds a deterministic cache key from an operation name and its
// parameters.
func Key(op string, params ...any) string {
	key := op
	for _, p := range params {
		key += fmt.Sprintf(":%v", p)
	}
	return key
}
