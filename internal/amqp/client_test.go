package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	declaredName string
	declaredKind string
	declareErr   error
	publishErr   error
	exchange     string
	key          string
	published    []amqp091.Publishing
	closed       bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	f.declaredName, f.declaredKind = name, kind
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.exchange, f.key = exchange, key
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestSetupDeclaresTopicExchange(t *testing.T) {
	ch := &fakeChannel{}
	if _, err := newClient(ch, "life_assistant", "chat.turn", nil); err != nil {
		t.Fatalf("newClient: %v", err)
	}
	if ch.declaredName != "life_assistant" || ch.declaredKind != "topic" {
		t.Errorf("declared %q/%q, want life_assistant/topic", ch.declaredName, ch.declaredKind)
	}
}

func TestSetupFailure(t *testing.T) {
	ch := &fakeChannel{declareErr: errors.New("access refused")}
	if _, err := newClient(ch, "x", "y", nil); err == nil {
		t.Fatal("expected setup error")
	}
}

func TestPublishChatTurn(t *testing.T) {
	ch := &fakeChannel{}
	c, err := newClient(ch, "life_assistant", "chat.turn", nil)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	msg := NewChatTurnMessage("How much can I spend?", "About $200.", true)
	if err := c.PublishChatTurn(context.Background(), msg); err != nil {
		t.Fatalf("PublishChatTurn: %v", err)
	}

	if ch.exchange != "life_assistant" || ch.key != "chat.turn" {
		t.Errorf("published to %q/%q", ch.exchange, ch.key)
	}
	if len(ch.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(ch.published))
	}
	p := ch.published[0]
	if p.ContentType != "application/json" || p.DeliveryMode != amqp091.Persistent {
		t.Errorf("unexpected publishing headers: %+v", p)
	}
	if p.MessageId != msg.EventID {
		t.Errorf("MessageId = %q, want %q", p.MessageId, msg.EventID)
	}

	var got ChatTurnMessage
	if err := json.Unmarshal(p.Body, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.UserMessage != msg.UserMessage || got.AssistantResponse != msg.AssistantResponse || !got.BudgetContext {
		t.Errorf("body = %+v, want %+v", got, msg)
	}
}

func TestPublishError(t *testing.T) {
	ch := &fakeChannel{}
	c, _ := newClient(ch, "x", "y", nil)
	ch.publishErr = errors.New("channel/connection is not open")

	if err := c.PublishChatTurn(context.Background(), NewChatTurnMessage("a", "b", false)); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestPublishAfterClose(t *testing.T) {
	ch := &fakeChannel{}
	c, _ := newClient(ch, "x", "y", nil)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ch.closed {
		t.Error("channel not closed")
	}
	err := c.PublishChatTurn(context.Background(), NewChatTurnMessage("a", "b", false))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	// Second close is a no-op.
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestNewChatTurnMessageIDsDiffer(t *testing.T) {
	a := NewChatTurnMessage("a", "b", false)
	b := NewChatTurnMessage("a", "b", false)
	if a.EventID == "" || a.EventID == b.EventID {
		t.Errorf("event ids %q and %q should be distinct and non-empty", a.EventID, b.EventID)
	}
}
