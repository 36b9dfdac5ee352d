// Package cache keeps computed explanation payloads in a key-value store so
// repeated requests for the same model version are served without recomputing.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/absentia-hr/explainer/internal/store"
)

const (
	keyPrefix = "explain:"

	// DefaultTTL bounds how long a cached explanation may be served.
	DefaultTTL = 7 * 24 * time.Hour
)

// Entry wraps a cached payload with its creation time. Payload keeps the
// stored bytes verbatim so hits return exactly what was first computed.
type Entry struct {
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Cache is a TTL cache over a Store. A single mutex spans the
// check-compute-store sequence so concurrent misses for a key compute once.
type Cache struct {
	store store.Store
	ttl   time.Duration
	mu    sync.Mutex
}

// New creates a cache over the given store. A non-positive ttl falls back
// to DefaultTTL.
func New(s store.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: s, ttl: ttl}
}

// GlobalKey names the cached global explanation for one model version.
func GlobalKey(version string) string {
	return fmt.Sprintf("%sglobal:%s", keyPrefix, version)
}

// GetOrCompute returns the cached payload for key, computing and storing it
// on a miss. The second return reports whether the payload came from the
// cache. Corrupt or stale entries are recomputed; a failure to store the
// fresh payload does not fail the request.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func() ([]byte, error)) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("error reading cache: %v", err)
	}
	if ok {
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err == nil && time.Since(entry.CreatedAt) < c.ttl {
			return entry.Payload, true, nil
		}
	}

	payload, err := compute()
	if err != nil {
		return nil, false, err
	}

	data, err := json.Marshal(Entry{CreatedAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return nil, false, fmt.Errorf("error marshaling cache entry: %v", err)
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		log.Printf("Warning: failed to store cache entry for %s: %v", key, err)
	}
	return payload, false, nil
}

// Invalidate drops a key so the next request recomputes it.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("error invalidating cache: %v", err)
	}
	return nil
}

// Ping checks the underlying store.
func (c *Cache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}
