// Package assistant builds conversations for a hosted chat model and turns
// every failure into a displayable reply.
package assistant

import (
	"context"
	"strings"

	"lifeassistant/internal/core"
	"lifeassistant/internal/log"
)

const (
	SystemPrompt = "You are a helpful personal assistant that helps manage daily life. " +
		"You have access to the user's calendar and budget information when provided. " +
		"Be concise, friendly, and practical in your responses."

	contextAck = "I understand the context. How can I help you?"

	DefaultMaxTokens        = 500
	DefaultSummaryMaxTokens = 100
	// HistoryLimit is the number of prior messages (five exchanges) sent with each prompt.
	HistoryLimit = 10
)

// Context carries optional situational text for the model.
type Context struct {
	Calendar string
	Budget   string
}

func (c *Context) empty() bool {
	return c == nil || (c.Calendar == "" && c.Budget == "")
}

// Assistant talks to one Provider.
type Assistant struct {
	provider         Provider
	maxTokens        int
	summaryMaxTokens int
	logger           *log.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

func WithMaxTokens(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

func WithSummaryMaxTokens(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.summaryMaxTokens = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

func New(p Provider, opts ...Option) *Assistant {
	a := &Assistant{
		provider:         p,
		maxTokens:        DefaultMaxTokens,
		summaryMaxTokens: DefaultSummaryMaxTokens,
		logger:           log.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.WithComponent(log.ComponentAssistant)
	return a
}

// GetResponse returns the model's reply. Failures come back as a reply string
// starting with "Error getting response from assistant: ".
func (a *Assistant) GetResponse(ctx context.Context, userMessage string, c *Context, history []core.Message) string {
	req := Request{
		System:    SystemPrompt,
		Messages:  BuildMessages(userMessage, c, history),
		MaxTokens: a.maxTokens,
	}
	text, err := a.provider.Complete(ctx, req)
	if err != nil {
		a.logger.ErrorContext(ctx, "Assistant request failed",
			log.NewFields().WithOperation(log.OpComplete).WithError(err).ToSlice()...)
		return "Error getting response from assistant: " + err.Error()
	}
	a.logger.DebugContext(ctx, "Assistant replied",
		log.FieldProvider, a.provider.Name(),
		log.FieldModel, a.provider.Model(),
		"messages", len(req.Messages))
	return text
}

// Summarize asks for a one-sentence summary of text. maxTokens <= 0 uses the configured default.
func (a *Assistant) Summarize(ctx context.Context, text string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = a.summaryMaxTokens
	}
	out, err := a.provider.Complete(ctx, Request{
		Messages:  []core.Message{{Role: core.RoleUser, Content: "Summarize this in one sentence: " + text}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "Summary request failed",
			log.NewFields().WithOperation(log.OpComplete).WithError(err).ToSlice()...)
		return "Error summarizing: " + err.Error()
	}
	return out
}

// BuildMessages assembles the conversation: optional context pair, the last
// HistoryLimit history entries, then the new user message.
func BuildMessages(userMessage string, c *Context, history []core.Message) []core.Message {
	msgs := make([]core.Message, 0, HistoryLimit+3)
	if !c.empty() {
		var b strings.Builder
		b.WriteString("Current context:\n")
		if c.Calendar != "" {
			b.WriteString("\nCalendar: " + c.Calendar)
		}
		if c.Budget != "" {
			b.WriteString("\nBudget: " + c.Budget)
		}
		msgs = append(msgs,
			core.Message{Role: core.RoleUser, Content: b.String()},
			core.Message{Role: core.RoleAssistant, Content: contextAck},
		)
	}
	msgs = append(msgs, core.LastMessages(history, HistoryLimit)...)
	return append(msgs, core.Message{Role: core.RoleUser, Content: userMessage})
}
