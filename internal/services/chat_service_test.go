package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"lifeassistant/internal/amqp"
	"lifeassistant/internal/assistant"
	"lifeassistant/internal/auth"
	"lifeassistant/internal/core"
)

type fakeResponder struct {
	reply    string
	prompts  []string
	contexts []*assistant.Context
	history  [][]core.Message
}

func (f *fakeResponder) GetResponse(ctx context.Context, msg string, c *assistant.Context, h []core.Message) string {
	f.prompts = append(f.prompts, msg)
	f.contexts = append(f.contexts, c)
	f.history = append(f.history, h)
	return f.reply
}

type fakeBudget struct {
	text  string
	calls int
}

func (f *fakeBudget) BudgetContext(ctx context.Context) string {
	f.calls++
	return f.text
}

type fakeLog struct {
	turns     []core.ChatTurn // newest first
	appendErr error
	readErr   error
	reads     int
}

func (f *fakeLog) AppendChatTurn(ctx context.Context, u, a string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns = append([]core.ChatTurn{{UserMessage: u, AssistantResponse: a}}, f.turns...)
	return nil
}

func (f *fakeLog) RecentChatTurns(ctx context.Context, limit int) ([]core.ChatTurn, error) {
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	if len(f.turns) > limit {
		return f.turns[:limit], nil
	}
	return f.turns, nil
}

type fakePublisher struct {
	msgs []*amqp.ChatTurnMessage
	err  error
}

func (f *fakePublisher) PublishChatTurn(ctx context.Context, m *amqp.ChatTurnMessage) error {
	f.msgs = append(f.msgs, m)
	return f.err
}

func newSession(t *testing.T) *auth.Session {
	t.Helper()
	return &auth.Session{ID: t.Name()}
}

func TestNeedsBudgetContext(t *testing.T) {
	tests := map[string]bool{
		"What's my BUDGET looking like?": true,
		"can I afford a trip":            true,
		"how much did I spend":           true,
		"Saving tips?":                   true,
		"what's the weather":             false,
		"":                               false,
	}
	for prompt, want := range tests {
		if got := NeedsBudgetContext(prompt); got != want {
			t.Errorf("NeedsBudgetContext(%q) = %v, want %v", prompt, got, want)
		}
	}
}

func TestLoadHistoryChronological(t *testing.T) {
	chatLog := &fakeLog{}
	for i := 1; i <= 7; i++ {
		chatLog.AppendChatTurn(context.Background(), fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	svc := NewChatService(&fakeResponder{}, nil, chatLog)
	s := newSession(t)

	msgs := svc.LoadHistory(context.Background(), s)
	if len(msgs) != 2*HistoryPreload {
		t.Fatalf("got %d messages, want %d", len(msgs), 2*HistoryPreload)
	}
	if msgs[0].Content != "q3" || msgs[len(msgs)-1].Content != "a7" {
		t.Errorf("window = %q..%q, want q3..a7", msgs[0].Content, msgs[len(msgs)-1].Content)
	}

	svc.LoadHistory(context.Background(), s)
	if chatLog.reads != 1 {
		t.Errorf("store reads = %d, want 1", chatLog.reads)
	}
}

func TestLoadHistoryStoreFailure(t *testing.T) {
	svc := NewChatService(&fakeResponder{}, nil, &fakeLog{readErr: errors.New("offline")})
	if msgs := svc.LoadHistory(context.Background(), newSession(t)); len(msgs) != 0 {
		t.Errorf("msgs = %+v, want none", msgs)
	}
}

func TestSendWithBudgetContext(t *testing.T) {
	r := &fakeResponder{reply: "You have $1,550 left."}
	b := &fakeBudget{text: "Current Month Budget (2025-06-01):"}
	chatLog := &fakeLog{}
	pub := &fakePublisher{}
	svc := NewChatService(r, b, chatLog, WithPublisher(pub))
	s := newSession(t)

	reply, err := svc.Send(context.Background(), s, "  How much money is left?  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != r.reply {
		t.Errorf("reply = %q", reply)
	}
	if b.calls != 1 || r.contexts[0] == nil || r.contexts[0].Budget != b.text {
		t.Errorf("budget context not passed: calls=%d ctx=%+v", b.calls, r.contexts[0])
	}
	if r.prompts[0] != "How much money is left?" {
		t.Errorf("prompt = %q", r.prompts[0])
	}
	if len(r.history[0]) != 0 {
		t.Errorf("history should not include the current prompt: %+v", r.history[0])
	}

	if msgs := s.Messages(); len(msgs) != 2 || msgs[1].Content != reply {
		t.Errorf("session messages = %+v", msgs)
	}
	if len(chatLog.turns) != 1 || chatLog.turns[0].AssistantResponse != reply {
		t.Errorf("persisted = %+v", chatLog.turns)
	}
	if len(pub.msgs) != 1 || !pub.msgs[0].BudgetContext || pub.msgs[0].UserMessage != "How much money is left?" {
		t.Errorf("published = %+v", pub.msgs)
	}
}

func TestSendWithoutBudgetKeyword(t *testing.T) {
	r := &fakeResponder{reply: "Hi!"}
	b := &fakeBudget{text: "x"}
	svc := NewChatService(r, b, &fakeLog{})

	if _, err := svc.Send(context.Background(), newSession(t), "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if b.calls != 0 || r.contexts[0] != nil {
		t.Errorf("unexpected budget context: calls=%d ctx=%+v", b.calls, r.contexts[0])
	}
}

func TestSendHistoryExcludesCurrentPrompt(t *testing.T) {
	r := &fakeResponder{reply: "ok"}
	svc := NewChatService(r, nil, &fakeLog{})
	s := newSession(t)

	for i := range 7 {
		if _, err := svc.Send(context.Background(), s, fmt.Sprintf("p%d", i)); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	last := r.history[len(r.history)-1]
	if len(last) != assistant.HistoryLimit {
		t.Fatalf("history len = %d, want %d", len(last), assistant.HistoryLimit)
	}
	if last[0].Content != "p1" || last[len(last)-1].Content != "ok" {
		t.Errorf("history window = %q..%q", last[0].Content, last[len(last)-1].Content)
	}
	for _, m := range last {
		if m.Content == "p6" {
			t.Error("current prompt leaked into history")
		}
	}
}

func TestSendPersistFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewChatService(&fakeResponder{reply: "ok"}, nil, &fakeLog{appendErr: errors.New("disk full")}, WithPublisher(pub))

	reply, err := svc.Send(context.Background(), newSession(t), "hi")
	if err != nil || reply != "ok" {
		t.Errorf("Send = %q, %v", reply, err)
	}
}

func TestSendEmptyPrompt(t *testing.T) {
	r := &fakeResponder{}
	svc := NewChatService(r, nil, nil)
	if _, err := svc.Send(context.Background(), newSession(t), "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("err = %v, want ErrEmptyPrompt", err)
	}
	if len(r.prompts) != 0 {
		t.Error("assistant should not be called")
	}
}

func TestClearKeepsStore(t *testing.T) {
	chatLog := &fakeLog{}
	svc := NewChatService(&fakeResponder{reply: "ok"}, nil, chatLog)
	s := newSession(t)

	svc.Send(context.Background(), s, "hi")
	svc.Clear(s)

	if len(s.Messages()) != 0 {
		t.Error("session transcript should be empty")
	}
	if len(chatLog.turns) != 1 {
		t.Error("persisted history should be kept")
	}
	if msgs := svc.LoadHistory(context.Background(), s); len(msgs) != 0 {
		t.Errorf("cleared session reloaded history: %+v", msgs)
	}
}
