// Package sqlite is the local conversation store backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"lifeassistant/internal/core"
	"lifeassistant/internal/log"
	"lifeassistant/internal/store"

	_ "modernc.org/sqlite"
)

// Fixed-width UTC layout so timestamps order correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store keeps chat history and cache entries in a SQLite file.
type Store struct {
	db     *sql.DB
	now    store.Clock
	logger *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps and expiry.
func WithClock(c store.Clock) Option {
	return func(s *Store) { s.now = c }
}

// WithLogger sets the logger; the default discards.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates the database directory if needed, migrates the schema and returns a Store.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers; SQLite allows only one anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db, now: time.Now, logger: log.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentStore)
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

func (s *Store) AppendChatTurn(ctx context.Context, userMessage, assistantResponse string) error {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_history (id, seq, user_message, assistant_response, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_history), ?, ?, ?)`,
		id, userMessage, assistantResponse, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("insert chat turn: %w", err)
	}
	s.logger.DebugContext(ctx, "Chat turn saved", "turn_id", id)
	return nil
}

func (s *Store) RecentChatTurns(ctx context.Context, limit int) ([]core.ChatTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_message, assistant_response, created_at
		FROM chat_history
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var turns []core.ChatTurn
	for rows.Next() {
		var (
			t       core.ChatTurn
			created string
		)
		if err := rows.Scan(&t.ID, &t.UserMessage, &t.AssistantResponse, &created); err != nil {
			return nil, fmt.Errorf("scan chat turn: %w", err)
		}
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", t.ID, err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}
	return turns, nil
}

func (s *Store) GetCacheEntry(ctx context.Context, key string, maxAge time.Duration) (json.RawMessage, bool, error) {
	if key == "" {
		return nil, false, store.ErrEmptyKey
	}
	var data, expires, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, expires_at, updated_at FROM api_cache WHERE cache_key = ?`, key,
	).Scan(&data, &expires, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry %q: %w", key, err)
	}

	entry := core.CacheEntry{Key: key, Payload: json.RawMessage(data)}
	if entry.ExpiresAt, err = parseTime(expires); err != nil {
		return nil, false, fmt.Errorf("parse expires_at for %q: %w", key, err)
	}
	if entry.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, false, fmt.Errorf("parse updated_at for %q: %w", key, err)
	}
	if !entry.Valid(s.now(), maxAge) {
		return nil, false, nil
	}
	return entry.Payload, true, nil
}

func (s *Store) SetCacheEntry(ctx context.Context, key string, payload any, ttl time.Duration) error {
	if key == "" {
		return store.ErrEmptyKey
	}
	data, err := store.EncodePayload(payload)
	if err != nil {
		return fmt.Errorf("encode cache payload %q: %w", key, err)
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_cache (cache_key, data, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			data = excluded.data,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		key, string(data), formatTime(now.Add(ttl)), formatTime(now))
	if err != nil {
		return fmt.Errorf("upsert cache entry %q: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteCacheEntry(ctx context.Context, key string) error {
	if key == "" {
		return store.ErrEmptyKey
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM api_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry %q: %w", key, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

var _ store.ConversationStore = (*Store)(nil)
