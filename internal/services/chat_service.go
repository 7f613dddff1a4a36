package services

import (
	"context"
	"errors"
	"strings"

	"lifeassistant/internal/amqp"
	"lifeassistant/internal/assistant"
	"lifeassistant/internal/auth"
	"lifeassistant/internal/core"
	"lifeassistant/internal/log"
	"lifeassistant/internal/store"
)

// HistoryPreload is the number of persisted turns shown when a session first opens the chat.
const HistoryPreload = 5

var ErrEmptyPrompt = errors.New("prompt is empty")

// budgetKeywords trigger budget context when they appear anywhere in a prompt.
var budgetKeywords = []string{"budget", "money", "spend", "spending", "expense", "cost", "afford", "save", "saving"}

// Responder produces the assistant's reply. Failures are returned as reply text.
type Responder interface {
	GetResponse(ctx context.Context, userMessage string, c *assistant.Context, history []core.Message) string
}

// BudgetContexter renders the current budget for the assistant.
type BudgetContexter interface {
	BudgetContext(ctx context.Context) string
}

// TurnPublisher announces completed turns.
type TurnPublisher interface {
	PublishChatTurn(ctx context.Context, msg *amqp.ChatTurnMessage) error
}

// ChatService runs one chat exchange: context selection, the model call,
// the in-session transcript and persistence.
type ChatService struct {
	assistant Responder
	budget    BudgetContexter
	log       store.ChatLog
	publisher TurnPublisher
	logger    *log.Logger
}

// ChatOption configures a ChatService.
type ChatOption func(*ChatService)

// WithPublisher enables chat turn events.
func WithPublisher(p TurnPublisher) ChatOption {
	return func(s *ChatService) { s.publisher = p }
}

func WithLogger(l *log.Logger) ChatOption {
	return func(s *ChatService) { s.logger = l }
}

func NewChatService(a Responder, budget BudgetContexter, chatLog store.ChatLog, opts ...ChatOption) *ChatService {
	s := &ChatService{
		assistant: a,
		budget:    budget,
		log:       chatLog,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentChat)
	return s
}

// LoadHistory seeds a session's transcript from the store on its first use.
func (s *ChatService) LoadHistory(ctx context.Context, session *auth.Session) []core.Message {
	session.LoadHistoryOnce(func() []core.Message {
		if s.log == nil {
			return nil
		}
		turns, err := s.log.RecentChatTurns(ctx, HistoryPreload)
		if err != nil {
			s.logger.WarnContext(ctx, "Could not load chat history",
				log.NewFields().WithOperation(log.OpRead).WithError(err).ToSlice()...)
			return nil
		}
		return core.MessagesFromTurns(turns)
	})
	return session.Messages()
}

// NeedsBudgetContext reports whether prompt mentions money matters.
func NeedsBudgetContext(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, kw := range budgetKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Send answers prompt within session. The model sees the session's transcript
// as it was before this prompt.
func (s *ChatService) Send(ctx context.Context, session *auth.Session, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	history := assistantHistory(s.LoadHistory(ctx, session))

	var c *assistant.Context
	withBudget := s.budget != nil && NeedsBudgetContext(prompt)
	if withBudget {
		c = &assistant.Context{Budget: s.budget.BudgetContext(ctx)}
	}

	reply := s.assistant.GetResponse(ctx, prompt, c, history)

	session.AppendMessages(
		core.Message{Role: core.RoleUser, Content: prompt},
		core.Message{Role: core.RoleAssistant, Content: reply},
	)

	s.persist(ctx, prompt, reply)
	s.publish(ctx, prompt, reply, withBudget)
	return reply, nil
}

// Clear empties the session transcript; persisted history is kept.
func (s *ChatService) Clear(session *auth.Session) {
	session.ClearMessages()
}

func (s *ChatService) persist(ctx context.Context, prompt, reply string) {
	if s.log == nil {
		return
	}
	if err := s.log.AppendChatTurn(ctx, prompt, reply); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save chat turn",
			log.NewFields().WithOperation(log.OpAppend).WithError(err).ToSlice()...)
	}
}

func (s *ChatService) publish(ctx context.Context, prompt, reply string, withBudget bool) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewChatTurnMessage(prompt, reply, withBudget)
	if err := s.publisher.PublishChatTurn(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish chat turn",
			log.NewFields().WithOperation(log.OpPublish).WithError(err).ToSlice()...)
	}
}

func assistantHistory(msgs []core.Message) []core.Message {
	return core.LastMessages(msgs, assistant.HistoryLimit)
}
