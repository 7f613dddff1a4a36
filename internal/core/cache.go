package core

import (
	"encoding/json"
	"time"
)

// CacheEntry is a keyed, expiring payload held in the cache table.
type CacheEntry struct {
	Key       string
	Payload   json.RawMessage
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Valid reports whether the entry may still be served at now.
// An entry is stale once now >= ExpiresAt, or once it is older than maxAge when maxAge > 0.
func (e CacheEntry) Valid(now time.Time, maxAge time.Duration) bool {
	if !now.Before(e.ExpiresAt) {
		return false
	}
	if maxAge > 0 && !e.UpdatedAt.IsZero() && now.Sub(e.UpdatedAt) >= maxAge {
		return false
	}
	return true
}
