package backend

import (
	"context"

	"lifeassistant/internal/amqp"
	"lifeassistant/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the conversation store, the optional chat turn publisher
// (nil when AMQP is not configured or unreachable) and a cleanup for both.
type BackendResult struct {
	Store     store.ConversationStore
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Supabase specific
	SupabaseURL     string
	SupabaseAnonKey string

	// Optional chat turn events
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	SupabaseBackend BackendType = "supabase"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SupabaseBackend:
		return true
	default:
		return false
	}
}
