package cache

import (
	"time"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
)

// CacheEntry represents a cached query result.
type CacheEntry struct {
	// Result is the aggregated result as returned to the caller
	Result *j1ql.Result `json:"result"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this result
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry wraps result in an entry that expires after ttl.
func NewEntry(result *j1ql.Result, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Result:   result,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
