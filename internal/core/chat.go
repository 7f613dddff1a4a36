package core

import "time"

// Roles used in LLM-visible conversations.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type (
	// ChatTurn is one persisted user/assistant exchange. CreatedAt is assigned by the store.
	ChatTurn struct {
		ID                string    `json:"id"`
		UserMessage       string    `json:"user_message"`
		AssistantResponse string    `json:"assistant_response"`
		CreatedAt         time.Time `json:"created_at"`
	}

	// Message is a single entry of the conversation sent to the model.
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
)

// MessagesFromTurns rebuilds a chronological conversation from turns stored newest first.
func MessagesFromTurns(turns []ChatTurn) []Message {
	msgs := make([]Message, 0, len(turns)*2)
	for i := len(turns) - 1; i >= 0; i-- {
		msgs = append(msgs,
			Message{Role: RoleUser, Content: turns[i].UserMessage},
			Message{Role: RoleAssistant, Content: turns[i].AssistantResponse},
		)
	}
	return msgs
}

// LastMessages returns the trailing n messages. The result shares no backing array with msgs.
func LastMessages(msgs []Message, n int) []Message {
	if n <= 0 {
		return nil
	}
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
