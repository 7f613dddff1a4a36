package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChatTurnMessage announces one completed chat exchange to downstream consumers.
type ChatTurnMessage struct {
	EventID           string    `json:"event_id"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	BudgetContext     bool      `json:"budget_context"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewChatTurnMessage creates a message with a fresh event id.
func NewChatTurnMessage(userMessage, assistantResponse string, budgetContext bool) *ChatTurnMessage {
	return &ChatTurnMessage{
		EventID:           uuid.NewString(),
		UserMessage:       userMessage,
		AssistantResponse: assistantResponse,
		BudgetContext:     budgetContext,
		Timestamp:         time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChatTurnMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
