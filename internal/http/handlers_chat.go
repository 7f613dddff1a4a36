package http

import (
	"errors"
	"net/http"

	"lifeassistant/internal/auth"
	"lifeassistant/internal/budget"
	"lifeassistant/internal/core"
	"lifeassistant/internal/log"
)

type chatPage struct {
	page
	Messages      []core.Message
	BudgetStatus  budget.Status
	ShowContext   bool
	BudgetContext string
	Error         string
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		redirect(w, r, "/login")
		return
	}
	s.renderChat(w, r, sess, http.StatusOK, "")
}

func (s *Server) renderChat(w http.ResponseWriter, r *http.Request, sess *auth.Session, status int, errMsg string) {
	ctx := r.Context()
	data := chatPage{
		page:         s.newPage("Chat Assistant", "chat"),
		Messages:     s.chat.LoadHistory(ctx, sess),
		BudgetStatus: budget.StatusNotConfigured,
		ShowContext:  queryFlag(r, "context"),
		Error:        errMsg,
	}
	if s.budget != nil {
		data.BudgetStatus = s.budget.Status(ctx)
		if data.ShowContext {
			data.BudgetContext = s.budget.BudgetContext(ctx)
		}
	} else if data.ShowContext {
		data.BudgetContext = budget.NotAvailable
	}
	s.render(w, r, status, "chat", data)
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		redirect(w, r, "/login")
		return
	}

	prompt, err := formValue(w, r, "prompt", maxPromptRunes)
	switch {
	case errors.Is(err, ErrFieldTooLong):
		s.renderChat(w, r, sess, http.StatusBadRequest, "Message is too long.")
		return
	case err != nil:
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if _, err := s.chat.Send(r.Context(), sess, prompt); err != nil {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Chat message rejected",
			log.NewFields().WithError(err).ToSlice()...)
	}
	redirect(w, r, "/chat")
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	if sess, ok := auth.FromContext(r.Context()); ok {
		s.chat.Clear(sess)
	}
	redirect(w, r, "/chat")
}
