package core

import (
	"cmp"
	"slices"
)

// TopCategoryLimit is the number of categories kept in a BudgetSummary.
const TopCategoryLimit = 5

type (
	// BudgetSummary is the current-month view of a budget, in major currency units.
	// It is rebuilt on every upstream fetch and doubles as the cache payload.
	BudgetSummary struct {
		Month      string          `json:"month"`
		Budgeted   float64         `json:"budgeted"`
		Spent      float64         `json:"spent"`
		Remaining  float64         `json:"remaining"`
		AgeOfMoney *int            `json:"age_of_money"`
		Categories []CategorySpend `json:"categories"`
	}

	// CategorySpend is one category's figures for the month.
	CategorySpend struct {
		Name      string  `json:"name"`
		Budgeted  float64 `json:"budgeted"`
		Spent     float64 `json:"spent"`
		Remaining float64 `json:"remaining"`
	}
)

// Progress returns spent/budgeted capped to [0, 1]. Unbudgeted categories report 0.
func (c CategorySpend) Progress() float64 {
	if c.Budgeted <= 0 {
		return 0
	}
	return min(c.Spent/c.Budgeted, 1)
}

// RankCategories sorts categories by spend, highest first, and keeps at most limit entries.
// Ties keep their input order.
func RankCategories(cats []CategorySpend, limit int) []CategorySpend {
	out := slices.Clone(cats)
	slices.SortStableFunc(out, func(a, b CategorySpend) int {
		return cmp.Compare(b.Spent, a.Spent)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
