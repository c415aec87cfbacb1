// Package rediscache provides a shared query cache backend so that several server
// instances observe each other's invalidations.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Snapfeed/internal/core/querycache"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "snapfeed:qc:"

// CacheBackend stores query results as plain string values. Every entry is also
// recorded in a per-query-name index set so prefix invalidation does not need SCAN.
type CacheBackend struct {
	rdb *redis.Client
}

var _ querycache.Backend = (*CacheBackend)(nil)

// NewCacheBackend wraps an existing client.
func NewCacheBackend(rdb *redis.Client) *CacheBackend {
	return &CacheBackend{rdb: rdb}
}

// Open parses a redis:// URL and verifies connectivity.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func entryKey(k querycache.Key) string { return keyPrefix + k.String() }

func indexKey(name string) string { return keyPrefix + "idx:" + name }

// Get implements querycache.Backend.
func (b *CacheBackend) Get(ctx context.Context, key querycache.Key) ([]byte, bool, error) {
	val, err := b.rdb.Get(ctx, entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set implements querycache.Backend.
func (b *CacheBackend) Set(ctx context.Context, key querycache.Key, value []byte, ttl time.Duration) error {
	pipe := b.rdb.TxPipeline()
	pipe.Set(ctx, entryKey(key), value, ttl)
	pipe.SAdd(ctx, indexKey(key.Name), key.String())
	// The index outlives its entries; stale members are pruned on invalidation.
	pipe.Expire(ctx, indexKey(key.Name), 2*ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate implements querycache.Backend.
func (b *CacheBackend) Invalidate(ctx context.Context, prefix querycache.Key) (int, error) {
	members, err := b.rdb.SMembers(ctx, indexKey(prefix.Name)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis index read: %w", err)
	}

	p := prefix.String()
	var matched []string
	for _, m := range members {
		if m == p || strings.HasPrefix(m, p+"/") {
			matched = append(matched, m)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	keys := make([]string, len(matched))
	stale := make([]any, len(matched))
	for i, m := range matched {
		keys[i] = keyPrefix + m
		stale[i] = m
	}

	pipe := b.rdb.TxPipeline()
	del := pipe.Del(ctx, keys...)
	pipe.SRem(ctx, indexKey(prefix.Name), stale...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis invalidate: %w", err)
	}
	return int(del.Val()), nil
}
