// Package querycache is the keyed cache of query results shared by the read paths.
// Mutations never patch cached data in place; they invalidate the affected keys
// and the next read re-fetches from the document store.
package querycache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"Snapfeed/internal/metrics"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how long an entry is served without invalidation.
const DefaultTTL = 5 * time.Minute

// Cache de-duplicates concurrent fetches of the same key and stores their results in a Backend.
//
// Each query name carries a generation counter that Invalidate bumps. A fetch
// records the generation when it starts and only stores its result if the
// generation is unchanged, so data read before an invalidation cannot
// repopulate the cache after it. The generation is also part of the in-flight
// key, so readers arriving after an invalidation never join a stale fetch.
//
// Locking is per query name: a slow backend write for one query never holds
// up invalidations or fetches of another.
type Cache struct {
	backend Backend
	logger  *slog.Logger
	names   map[string]*nameState
	group   singleflight.Group
	ttl     time.Duration
	mu      sync.Mutex // guards names
}

// nameState is the generation of one query name. mu serializes the
// generation check and backend write in store against Invalidate.
type nameState struct {
	gen atomic.Uint64
	mu  sync.Mutex
}

// New creates a cache. A nil backend selects NewMemoryBackend and a non-positive ttl selects DefaultTTL.
func New(backend Backend, ttl time.Duration, logger *slog.Logger) *Cache {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		backend: backend,
		ttl:     ttl,
		logger:  logger,
		names:   make(map[string]*nameState),
	}
}

func (c *Cache) state(name string) *nameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.names[name]
	if !ok {
		st = &nameState{}
		c.names[name] = st
	}
	return st
}

func (c *Cache) generation(name string) uint64 {
	return c.state(name).gen.Load()
}

// Invalidate marks every entry matching each key as stale. It never fails from
// the caller's perspective; backend errors are logged.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) {
	if c == nil {
		return
	}
	for _, key := range keys {
		st := c.state(key.Name)
		st.mu.Lock()
		st.gen.Add(1)
		st.mu.Unlock()

		dropped, err := c.backend.Invalidate(ctx, key)
		if err != nil {
			c.logger.Warn("query cache invalidation failed",
				"query", key.String(),
				"error", err)
			continue
		}
		metrics.QueryCacheInvalidations.WithLabelValues(key.Name).Add(float64(dropped))

		c.logger.Debug("query cache invalidated",
			"query", key.String(),
			"dropped", dropped)
	}
}

type flightResult[T any] struct {
	value   T
	encoded []byte
}

// Fetch returns the cached value for key, or runs fn once per key across
// concurrent callers and caches its result. Errors are returned to every
// waiting caller and never cached. A nil cache calls fn directly.
//
// Values round-trip through JSON so each caller receives its own copy.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return fn(ctx)
	}

	if cached, ok := c.lookup(ctx, key); ok {
		var v T
		err := json.Unmarshal(cached, &v)
		if err == nil {
			metrics.QueryCacheLookups.WithLabelValues(key.Name, metrics.ResultHit).Inc()
			return v, nil
		}
		c.logger.Warn("query cache entry undecodable, refetching",
			"query", key.String(),
			"error", err)
	}
	metrics.QueryCacheLookups.WithLabelValues(key.Name, metrics.ResultMiss).Inc()

	gen := c.generation(key.Name)
	flightKey := key.String() + "#" + strconv.FormatUint(gen, 10)

	res, err, _ := c.group.Do(flightKey, func() (any, error) {
		// Detached so one caller giving up does not fail the others sharing this flight.
		v, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			c.logger.Warn("query result not cacheable",
				"query", key.String(),
				"error", err)
			return flightResult[T]{value: v}, nil
		}
		c.store(ctx, key, gen, encoded)
		return flightResult[T]{value: v, encoded: encoded}, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	fr := res.(flightResult[T])
	if fr.encoded == nil {
		return fr.value, nil
	}
	var v T
	if err := json.Unmarshal(fr.encoded, &v); err != nil {
		return fr.value, nil
	}
	return v, nil
}

func (c *Cache) lookup(ctx context.Context, key Key) ([]byte, bool) {
	value, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("query cache read failed",
			"query", key.String(),
			"error", err)
		return nil, false
	}
	return value, ok
}

// store writes encoded under key unless the key's generation moved past gen.
// The name's lock is held across the check and the write so an Invalidate of
// the same name cannot slip in between.
func (c *Cache) store(ctx context.Context, key Key, gen uint64, encoded []byte) {
	st := c.state(key.Name)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.gen.Load() != gen {
		metrics.QueryCacheDiscardedWrites.WithLabelValues(key.Name).Inc()
		c.logger.Debug("query invalidated while in flight, result not cached",
			"query", key.String())
		return
	}
	if err := c.backend.Set(context.WithoutCancel(ctx), key, encoded, c.ttl); err != nil {
		c.logger.Warn("query cache write failed",
			"query", key.String(),
			"error", err)
	}
}
