// Package ynab is a small client for the YNAB budgeting API, limited to what the
// dashboard shows: the budget listing and the current month of one budget.
package ynab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"lifeassistant/internal/core"
	"lifeassistant/internal/log"
)

const (
	DefaultBaseURL = "https://api.ynab.com/v1"
	requestTimeout = 10 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
)

var (
	// ErrNotAvailable is matched by every error this client returns; callers render it
	// as "not connected" rather than failing.
	ErrNotAvailable = errors.New("ynab: budget data not available")

	ErrNotConnected   = fmt.Errorf("%w: no access token configured", ErrNotAvailable)
	ErrUnauthorized   = fmt.Errorf("%w: unauthorized (access token invalid or revoked)", ErrNotAvailable)
	ErrNotFound       = fmt.Errorf("%w: not found", ErrNotAvailable)
	ErrRateLimited    = fmt.Errorf("%w: rate limited", ErrNotAvailable)
	ErrNoBudgets      = fmt.Errorf("%w: no budgets on this account", ErrNotAvailable)
	ErrBudgetNotFound = fmt.Errorf("%w: budget not found", ErrNotAvailable)
)

// Internal pseudo-categories that never represent spending.
var internalCategories = map[string]bool{
	"Inflow: Ready to Assign":  true,
	"Internal Master Category": true,
}

// Options configures a Client.
type Options struct {
	AccessToken       string
	DefaultBudgetName string
	BaseURL           string
	// FallbackToFirst uses the first listed budget when the requested name
	// does not match any budget, instead of failing.
	FallbackToFirst bool
	HTTPClient      *http.Client
	Logger          *log.Logger
}

// Client fetches budget data. The zero token yields a disconnected client that
// never touches the network.
type Client struct {
	token             string
	defaultBudgetName string
	baseURL           string
	fallbackToFirst   bool
	http              *http.Client
	logger            *log.Logger
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		token:             strings.TrimSpace(opts.AccessToken),
		defaultBudgetName: strings.TrimSpace(opts.DefaultBudgetName),
		baseURL:           baseURL,
		fallbackToFirst:   opts.FallbackToFirst,
		http:              hc,
		logger:            logger.WithComponent(log.ComponentYNAB),
	}
}

// Connected reports whether an access token is configured.
func (c *Client) Connected() bool {
	return c != nil && c.token != ""
}

// ListBudgets returns every budget visible to the token.
func (c *Client) ListBudgets(ctx context.Context) ([]Budget, error) {
	var resp budgetsResponse
	if err := c.get(ctx, "/budgets", &resp); err != nil {
		return nil, err
	}
	return resp.Data.Budgets, nil
}

// ListBudgetNames is a convenience for diagnostics and settings screens.
func (c *Client) ListBudgetNames(ctx context.Context) ([]string, error) {
	budgets, err := c.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(budgets))
	for i, b := range budgets {
		names[i] = b.Name
	}
	return names, nil
}

// FetchCurrentMonthSummary resolves a budget by name (the hint, else the configured
// default, else the first listed) and summarises its current month.
func (c *Client) FetchCurrentMonthSummary(ctx context.Context, budgetNameHint string) (*core.BudgetSummary, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}

	budgets, err := c.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}
	budget, err := c.resolveBudget(ctx, budgets, budgetNameHint)
	if err != nil {
		return nil, err
	}

	// "current" lets the API pick the month, no local date math needed.
	var resp monthResponse
	if err := c.get(ctx, "/budgets/"+url.PathEscape(budget.ID)+"/months/current", &resp); err != nil {
		return nil, err
	}

	summary := Summarize(resp.Data.Month)
	c.logger.DebugContext(ctx, "Fetched current month",
		log.FieldBudget, budget.Name,
		log.FieldMonth, summary.Month,
		"categories", len(summary.Categories))
	return &summary, nil
}

func (c *Client) resolveBudget(ctx context.Context, budgets []Budget, hint string) (Budget, error) {
	if len(budgets) == 0 {
		return Budget{}, ErrNoBudgets
	}

	name := strings.TrimSpace(hint)
	if name == "" {
		name = c.defaultBudgetName
	}
	if name == "" {
		return budgets[0], nil
	}

	for _, b := range budgets {
		if b.Name == name {
			return b, nil
		}
	}

	names := make([]string, len(budgets))
	for i, b := range budgets {
		names[i] = b.Name
	}
	diag := fmt.Sprintf("budget %q not found; available budgets: %s", name, strings.Join(names, ", "))
	if s := closestName(name, names); s != "" {
		diag += fmt.Sprintf(" (did you mean %q?)", s)
	}

	if c.fallbackToFirst {
		c.logger.WarnContext(ctx, "Budget name not matched, using first listed budget",
			log.FieldBudget, name,
			"fallback", budgets[0].Name,
			"diagnostic", diag)
		return budgets[0], nil
	}
	return Budget{}, fmt.Errorf("%w: %s", ErrBudgetNotFound, diag)
}

// closestName returns the candidate with the smallest edit distance to name, as long
// as the distance is small relative to the name's length.
func closestName(name string, candidates []string) string {
	best, bestDist := "", -1
	target := strings.ToLower(name)
	for _, cand := range candidates {
		d := levenshtein.ComputeDistance(target, strings.ToLower(cand))
		if bestDist < 0 || d < bestDist {
			best, bestDist = cand, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(name)/3) {
		return ""
	}
	return best
}

// Summarize converts a raw month into a BudgetSummary: milliunits become major units,
// hidden and internal categories are dropped, only categories with spending are kept,
// ranked by spend, top five.
func Summarize(m Month) core.BudgetSummary {
	summary := core.BudgetSummary{
		Month:      m.Month,
		Budgeted:   core.FromMilliunits(m.Budgeted),
		Spent:      core.FromMilliunits(abs(m.Activity)),
		Remaining:  core.FromMilliunits(m.Budgeted + m.Activity),
		Categories: []core.CategorySpend{},
	}
	if m.AgeOfMoney != nil {
		age := *m.AgeOfMoney
		summary.AgeOfMoney = &age
	}

	var spending []core.CategorySpend
	for _, cat := range m.Categories {
		if cat.Hidden || internalCategories[cat.Name] || cat.Activity >= 0 {
			continue
		}
		spending = append(spending, core.CategorySpend{
			Name:      cat.Name,
			Budgeted:  core.FromMilliunits(max(cat.Budgeted, 0)),
			Spent:     core.FromMilliunits(abs(cat.Activity)),
			Remaining: core.FromMilliunits(cat.Balance),
		})
	}
	if ranked := core.RankCategories(spending, core.TopCategoryLimit); len(ranked) > 0 {
		summary.Categories = ranked
	}
	return summary
}

// get performs an authenticated GET request and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", ErrNotAvailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", ErrNotAvailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d", ErrNotAvailable, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrNotAvailable, path, err)
	}
	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
