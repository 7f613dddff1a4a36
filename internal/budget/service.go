// Package budget serves budget summaries through the conversation store's cache
// table and formats them for the dashboard and the assistant.
package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"lifeassistant/internal/core"
	"lifeassistant/internal/log"
	"lifeassistant/internal/store"
)

const (
	// CacheKey is the cache table key for the current-month summary.
	CacheKey = "budget_summary"
	// DefaultTTL bounds how long a summary is served from cache.
	DefaultTTL = 5 * time.Minute

	// NotAvailable is the exact context string used whenever no summary can be produced.
	NotAvailable = "Budget information not available."
)

// Status of the budget connection as shown next to the chat.
type Status string

const (
	StatusConnected     Status = "connected"
	StatusInvalid       Status = "invalid"
	StatusNotConfigured Status = "not_configured"
)

// Fetcher is the upstream budget API.
type Fetcher interface {
	Connected() bool
	FetchCurrentMonthSummary(ctx context.Context, budgetNameHint string) (*core.BudgetSummary, error)
}

// Service is a read-through cache in front of a Fetcher.
type Service struct {
	fetcher Fetcher
	cache   store.Cache
	ttl     time.Duration
	logger  *log.Logger
	group   singleflight.Group
}

// NewService wires a fetcher to a cache. A nil cache disables caching.
func NewService(fetcher Fetcher, cache store.Cache, ttl time.Duration, logger *log.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.WithComponent(log.ComponentBudget),
	}
}

// Connected reports whether the upstream client has credentials.
func (s *Service) Connected() bool {
	return s.fetcher != nil && s.fetcher.Connected()
}

// GetBudgetSummary returns the current-month summary, or false when none is available.
func (s *Service) GetBudgetSummary(ctx context.Context) (*core.BudgetSummary, bool) {
	if !s.Connected() {
		return nil, false
	}
	if summary, ok := s.cached(ctx); ok {
		return summary, true
	}

	// The fetch is shared, so it must outlive whichever caller started it.
	v, err, shared := s.group.Do(CacheKey, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		summary, err := s.fetcher.FetchCurrentMonthSummary(fetchCtx, "")
		if err != nil {
			return nil, err
		}
		s.store(fetchCtx, summary)
		return summary, nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Budget summary unavailable",
			log.NewFields().WithOperation(log.OpFetch).WithError(err).ToSlice()...)
		return nil, false
	}
	if shared {
		s.logger.DebugContext(ctx, "Budget fetch shared with concurrent caller")
	}
	return v.(*core.BudgetSummary), true
}

func (s *Service) cached(ctx context.Context) (*core.BudgetSummary, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.GetCacheEntry(ctx, CacheKey, s.ttl)
	if err != nil {
		s.logger.WarnContext(ctx, "Cache read failed, fetching directly",
			log.NewFields().WithCache(CacheKey, false).WithError(err).ToSlice()...)
		return nil, false
	}
	if !ok {
		s.logger.DebugContext(ctx, "Cache miss", log.NewFields().WithCache(CacheKey, false).ToSlice()...)
		return nil, false
	}
	var summary core.BudgetSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		s.logger.WarnContext(ctx, "Cached budget summary is corrupt, refetching",
			log.NewFields().WithCache(CacheKey, false).WithError(err).ToSlice()...)
		return nil, false
	}
	s.logger.DebugContext(ctx, "Cache hit", log.NewFields().WithCache(CacheKey, true).ToSlice()...)
	return &summary, true
}

func (s *Service) store(ctx context.Context, summary *core.BudgetSummary) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetCacheEntry(ctx, CacheKey, summary, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "Cache write failed",
			log.NewFields().WithCache(CacheKey, false).WithError(err).ToSlice()...)
	}
}

// Refresh drops the cached summary so the next read goes upstream.
func (s *Service) Refresh(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeleteCacheEntry(ctx, CacheKey); err != nil {
		return fmt.Errorf("clear budget cache: %w", err)
	}
	s.logger.InfoContext(ctx, "Budget cache cleared")
	return nil
}

// BudgetContext renders the summary as plain text for the assistant.
func (s *Service) BudgetContext(ctx context.Context) string {
	summary, ok := s.GetBudgetSummary(ctx)
	if !ok {
		return NotAvailable
	}
	return FormatContext(summary)
}

// Status classifies the connection: no token, token that yields no data, or working.
func (s *Service) Status(ctx context.Context) Status {
	if !s.Connected() {
		return StatusNotConfigured
	}
	if _, ok := s.GetBudgetSummary(ctx); !ok {
		return StatusInvalid
	}
	return StatusConnected
}

// FormatContext renders a summary as the multi-line block given to the assistant.
func FormatContext(summary *core.BudgetSummary) string {
	if summary == nil {
		return NotAvailable
	}
	age := "N/A"
	if summary.AgeOfMoney != nil {
		age = fmt.Sprint(*summary.AgeOfMoney)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current Month Budget (%s):\n", summary.Month)
	fmt.Fprintf(&b, "- Total Budgeted: %s\n", core.FormatCurrency(summary.Budgeted))
	fmt.Fprintf(&b, "- Total Spent: %s\n", core.FormatCurrency(summary.Spent))
	fmt.Fprintf(&b, "- Remaining: %s\n", core.FormatCurrency(summary.Remaining))
	fmt.Fprintf(&b, "- Age of Money: %s days\n", age)
	b.WriteString("\nTop Spending Categories:")
	for _, c := range summary.Categories {
		fmt.Fprintf(&b, "\n- %s: %s of %s", c.Name, core.FormatCurrency(c.Spent), core.FormatCurrency(c.Budgeted))
	}
	return b.String()
}
