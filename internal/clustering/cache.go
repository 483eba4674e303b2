package clustering

import (
	"sync"
	"time"

	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/globaltime"
)

// ttlCache holds one loaded value for a bounded time. Instances are owned by
// the Service and invalidated at batch boundaries, not process-wide
// singletons.
type ttlCache[T any] struct {
	mu     sync.Mutex
	ttl    time.Duration
	value  T
	loaded bool
	expiry time.Time
}

func newTTLCache[T any](ttl time.Duration) *ttlCache[T] {
	return &ttlCache[T]{ttl: ttl}
}

// Get returns the cached value, loading it through load when missing or
// expired. Load errors are not cached.
func (c *ttlCache[T]) Get(load func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && globaltime.UTC().Before(c.expiry) {
		return c.value, nil
	}

	value, err := load()
	if err != nil {
		var zero T
		return zero, err
	}

	c.value = value
	c.loaded = true
	c.expiry = globaltime.UTC().Add(c.ttl)
	return value, nil
}

// Invalidate drops the cached value so the next Get reloads.
func (c *ttlCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	var zero T
	c.value = zero
}
