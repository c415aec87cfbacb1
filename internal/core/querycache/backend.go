package querycache

import (
	"context"
	"sync"
	"time"
)

// Backend stores encoded query results.
// Implementations: MemoryBackend (in-process) and redis.CacheBackend (shared).
type Backend interface {
	// Get returns the stored value, or ok=false on a miss or expired entry.
	Get(ctx context.Context, key Key) (value []byte, ok bool, err error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error

	// Invalidate drops every entry whose key has the given prefix and reports how many were dropped.
	Invalidate(ctx context.Context, prefix Key) (int, error)
}

type memoryEntry struct {
	expires time.Time
	key     Key
	value   []byte
}

// MemoryBackend is a process-local Backend guarded by a RWMutex.
type MemoryBackend struct {
	now     func() time.Time
	entries map[string]memoryEntry
	mu      sync.RWMutex
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, key Key) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[key.String()]
	if !ok || b.now().After(e.expires) {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set implements Backend.
func (b *MemoryBackend) Set(_ context.Context, key Key, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[key.String()] = memoryEntry{
		key:     key,
		value:   value,
		expires: b.now().Add(ttl),
	}
	return nil
}

// Invalidate implements Backend.
func (b *MemoryBackend) Invalidate(_ context.Context, prefix Key) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for s, e := range b.entries {
		if e.key.HasPrefix(prefix) {
			delete(b.entries, s)
			dropped++
		}
	}
	return dropped, nil
}

// Len returns the number of stored entries, expired ones included.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
