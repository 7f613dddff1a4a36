// Package store defines the conversation store: an append-only chat transcript log
// and a keyed cache table whose entries expire.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"lifeassistant/internal/core"
)

// Table names shared by every backend.
const (
	ChatHistoryTable = "chat_history"
	CacheTable       = "api_cache"
)

// ErrEmptyKey is returned for cache operations without a key.
var ErrEmptyKey = errors.New("store: empty cache key")

// ChatLog is the transcript side of the store.
type ChatLog interface {
	AppendChatTurn(ctx context.Context, userMessage, assistantResponse string) error
	// RecentChatTurns returns at most limit turns, newest first.
	RecentChatTurns(ctx context.Context, limit int) ([]core.ChatTurn, error)
}

// Cache is the expiring key/value side of the store.
type Cache interface {
	// GetCacheEntry returns the payload for key, or false when it is missing or stale.
	GetCacheEntry(ctx context.Context, key string, maxAge time.Duration) (json.RawMessage, bool, error)
	// SetCacheEntry inserts or overwrites key with payload (JSON-encoded) for ttl.
	SetCacheEntry(ctx context.Context, key string, payload any, ttl time.Duration) error
	DeleteCacheEntry(ctx context.Context, key string) error
}

// ConversationStore is implemented by every backend.
type ConversationStore interface {
	ChatLog
	Cache
	Ping(ctx context.Context) error
	Close() error
}

// Clock returns the current time; backends accept one so expiry can be tested.
type Clock func() time.Time

// EncodePayload marshals a cache payload, passing raw JSON through untouched.
func EncodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		return json.Marshal(payload)
	}
}
