package cacheutil

import (
	"sync"
	"time"
)

// WriteThrough executes a write operation and invalidates the cache on
// success, keeping cached reads consistent with the underlying store.
func WriteThrough(invalidate func(), operation func() error) error {
	if err := operation(); err != nil {
		return err
	}
	invalidate()
	return nil
}

// CachedValue is a cached value with its fetch timestamp.
type CachedValue[T any] struct {
	Value     T
	FetchedAt time.Time
}

// ReadThrough is a thread-safe read-through cache with double-checked
// locking: checkCache runs first under RLock, then again under the write
// lock with a fresh timestamp before fetchAndCache populates the entry.
// The re-check prevents duplicate fetches when two goroutines miss at once.
func ReadThrough[T any](
	mu *sync.RWMutex,
	checkCache func(now time.Time) (T, bool),
	fetchAndCache func(now time.Time) (T, error),
) (T, error) {
	now := time.Now()
	mu.RLock()
	if value, ok := checkCache(now); ok {
		mu.RUnlock()
		return value, nil
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Fresh timestamp so a value cached between RUnlock and Lock is not
	// treated as expired.
	nowAfterLock := time.Now()
	if value, ok := checkCache(nowAfterLock); ok {
		return value, nil
	}
	return fetchAndCache(nowAfterLock)
}
