// Package supabase is the hosted conversation store backend, talking to the
// Supabase PostgREST endpoint for the chat_history and api_cache tables.
//
// The tables are expected to look like this:
//
//	create table chat_history (
//	    id                 bigserial primary key,
//	    user_message       text not null,
//	    assistant_response text not null,
//	    created_at         timestamptz not null default now()
//	);
//
//	create table api_cache (
//	    cache_key  text primary key,
//	    data       jsonb not null,
//	    expires_at timestamptz not null,
//	    updated_at timestamptz not null default now()
//	);
//
// A uuid id column with a default works as well. updated_at is written on
// every upsert, so an api_cache table created without it must gain the column.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lifeassistant/internal/core"
	"lifeassistant/internal/log"
	"lifeassistant/internal/store"
)

const (
	restPath       = "/rest/v1/"
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

var (
	ErrMissingCredentials = errors.New("supabase: url and anon key are required")
	ErrRequestFailed      = errors.New("supabase: request failed")
)

// Options configures a Store.
type Options struct {
	URL        string
	AnonKey    string
	HTTPClient *http.Client
	Clock      store.Clock
	Logger     *log.Logger
}

// Store implements store.ConversationStore over PostgREST.
type Store struct {
	base   string
	key    string
	http   *http.Client
	now    store.Clock
	logger *log.Logger
}

// chatInsert carries only the message columns; id and created_at come from
// the table defaults.
type chatInsert struct {
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
}

// chatRow.ID is raw because the id column may be a uuid or a serial.
type chatRow struct {
	ID                json.RawMessage `json:"id"`
	UserMessage       string          `json:"user_message"`
	AssistantResponse string          `json:"assistant_response"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (r chatRow) turn() core.ChatTurn {
	id := string(r.ID)
	var s string
	if json.Unmarshal(r.ID, &s) == nil {
		id = s
	}
	return core.ChatTurn{
		ID:                id,
		UserMessage:       r.UserMessage,
		AssistantResponse: r.AssistantResponse,
		CreatedAt:         r.CreatedAt,
	}
}

type cacheRow struct {
	CacheKey  string          `json:"cache_key"`
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expires_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func New(opts Options) (*Store, error) {
	if opts.URL == "" || opts.AnonKey == "" {
		return nil, ErrMissingCredentials
	}
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("parse supabase url: %w", err)
	}
	s := &Store{
		base:   strings.TrimRight(opts.URL, "/") + restPath,
		key:    opts.AnonKey,
		http:   opts.HTTPClient,
		now:    opts.Clock,
		logger: opts.Logger,
	}
	if s.http == nil {
		s.http = &http.Client{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	s.logger = s.logger.WithComponent(log.ComponentStore)
	return s, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Ping(ctx context.Context) error {
	q := url.Values{"select": {"cache_key"}, "limit": {"1"}}
	if err := s.do(ctx, http.MethodGet, store.CacheTable, q, nil, nil, nil); err != nil {
		return fmt.Errorf("ping supabase: %w", err)
	}
	return nil
}

func (s *Store) AppendChatTurn(ctx context.Context, userMessage, assistantResponse string) error {
	row := chatInsert{UserMessage: userMessage, AssistantResponse: assistantResponse}
	hdr := http.Header{"Prefer": {"return=minimal"}}
	if err := s.do(ctx, http.MethodPost, store.ChatHistoryTable, nil, hdr, row, nil); err != nil {
		return fmt.Errorf("insert chat turn: %w", err)
	}
	return nil
}

func (s *Store) RecentChatTurns(ctx context.Context, limit int) ([]core.ChatTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := url.Values{
		"select": {"id,user_message,assistant_response,created_at"},
		"order":  {"created_at.desc"},
		"limit":  {strconv.Itoa(limit)},
	}
	var rows []chatRow
	if err := s.do(ctx, http.MethodGet, store.ChatHistoryTable, q, nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	turns := make([]core.ChatTurn, 0, len(rows))
	for _, r := range rows {
		turns = append(turns, r.turn())
	}
	return turns, nil
}

func (s *Store) GetCacheEntry(ctx context.Context, key string, maxAge time.Duration) (json.RawMessage, bool, error) {
	if key == "" {
		return nil, false, store.ErrEmptyKey
	}
	now := s.now()
	q := url.Values{
		"select":     {"cache_key,data,expires_at,updated_at"},
		"cache_key":  {"eq." + key},
		"expires_at": {"gte." + now.UTC().Format(time.RFC3339Nano)},
		"limit":      {"1"},
	}
	var rows []cacheRow
	if err := s.do(ctx, http.MethodGet, store.CacheTable, q, nil, nil, &rows); err != nil {
		return nil, false, fmt.Errorf("read cache entry %q: %w", key, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	entry := core.CacheEntry{
		Key:       rows[0].CacheKey,
		Payload:   rows[0].Data,
		ExpiresAt: rows[0].ExpiresAt,
		UpdatedAt: rows[0].UpdatedAt,
	}
	// The server filter uses its own notion of now; re-check against ours.
	if !entry.Valid(now, maxAge) {
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
	now := s.now().UTC()
	row := cacheRow{CacheKey: key, Data: data, ExpiresAt: now.Add(ttl), UpdatedAt: now}
	q := url.Values{"on_conflict": {"cache_key"}}
	hdr := http.Header{"Prefer": {"resolution=merge-duplicates,return=minimal"}}
	if err := s.do(ctx, http.MethodPost, store.CacheTable, q, hdr, row, nil); err != nil {
		return fmt.Errorf("upsert cache entry %q: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteCacheEntry(ctx context.Context, key string) error {
	if key == "" {
		return store.ErrEmptyKey
	}
	q := url.Values{"cache_key": {"eq." + key}}
	if err := s.do(ctx, http.MethodDelete, store.CacheTable, q, nil, nil, nil); err != nil {
		return fmt.Errorf("delete cache entry %q: %w", key, err)
	}
	return nil
}

// do sends one PostgREST request. body is JSON-encoded when non-nil and the
// response is decoded into out when out is non-nil.
func (s *Store) do(ctx context.Context, method, table string, q url.Values, hdr http.Header, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	endpoint := s.base + table
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.WarnContext(ctx, "PostgREST request rejected",
			"method", method, "table", table, "status", resp.StatusCode)
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrRequestFailed, method, table, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s response: %w", table, err)
	}
	return nil
}

var _ store.ConversationStore = (*Store)(nil)
