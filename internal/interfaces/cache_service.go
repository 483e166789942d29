// Package interfaces provides service interfaces for dependency injection.
package interfaces

import "time"

// CacheService is a process-local TTL cache. Keys are namespaced per user;
// the key builders in the cache package are the only sanctioned way to build
// them.
type CacheService interface {
	// Get returns the cached value and true when present and unexpired.
	Get(key string) (interface{}, bool)

	// Set stores a value under key for the given TTL. A non-positive TTL
	// falls back to the configured default.
	Set(key string, value interface{}, ttl time.Duration)

	// Delete removes one key.
	Delete(key string)

	// DeletePrefix removes every key under one prefix.
	DeletePrefix(prefix string) int

	// FlushUser removes every key belonging to one user.
	FlushUser(userID string) int

	// Stats returns hit/miss counters and the live entry count.
	Stats() CacheStats
}

// CacheStats is a snapshot of cache effectiveness counters.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
	Evicted int64 `json:"evicted"`
}
