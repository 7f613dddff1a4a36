package http

import (
	"net/http"

	"lifeassistant/internal/core"
	"lifeassistant/internal/log"
)

// page carries what every template's header and footer need.
type page struct {
	Title   string
	Active  string
	Updated string
}

func (s *Server) newPage(title, active string) page {
	return page{Title: title, Active: active, Updated: s.now().Format("03:04 PM")}
}

type categoryBar struct {
	Name     string
	Spent    float64
	Budgeted float64
	Progress float64
}

type dashboardPage struct {
	page
	Summary    *core.BudgetSummary
	Gauge      gaugeView
	Categories []categoryBar
	HasChats   bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := dashboardPage{page: s.newPage("Dashboard", "dashboard")}

	if s.budget != nil {
		if summary, ok := s.budget.GetBudgetSummary(ctx); ok {
			data.Summary = summary
			data.Gauge = newGaugeView(summary)
			data.Categories = categoryBars(summary.Categories)
		}
	}

	if s.chatLog != nil {
		turns, err := s.chatLog.RecentChatTurns(ctx, 1)
		if err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Could not read last chat",
				log.NewFields().WithOperation(log.OpRead).WithError(err).ToSlice()...)
		}
		data.HasChats = len(turns) > 0
	}

	s.render(w, r, http.StatusOK, "dashboard", data)
}

// handleDashboardRefresh drops the cached summary so the next view refetches.
func (s *Server) handleDashboardRefresh(w http.ResponseWriter, r *http.Request) {
	if s.budget != nil {
		if err := s.budget.Refresh(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Budget refresh failed",
				log.NewFields().WithOperation(log.OpDelete).WithError(err).ToSlice()...)
		}
	}
	redirect(w, r, "/dashboard")
}

func categoryBars(cats []core.CategorySpend) []categoryBar {
	bars := make([]categoryBar, 0, len(cats))
	for _, c := range cats {
		bars = append(bars, categoryBar{
			Name:     c.Name,
			Spent:    c.Spent,
			Budgeted: c.Budgeted,
			Progress: c.Progress(),
		})
	}
	return bars
}
