package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent []published
	err  error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "ledger_events")

	event := domain.TransactionApplied{
		TransactionID: "0b8e5a52-1d7a-4c2e-9b8f-3c9a6f0d2e11",
		CustomerID:    1,
		Amount:        100,
		Kind:          domain.TransactionKindDebit,
		Description:   "pix",
		Balance:       -100,
		Limit:         100000,
		OccurredAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := p.Publish(context.Background(), domain.RoutingKeyTransactionApplied, event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(ch.sent) != 1 {
		t.Fatalf("sent=%d want=1", len(ch.sent))
	}
	got := ch.sent[0]
	if got.exchange != "ledger_events" || got.key != "transaction.applied" {
		t.Fatalf("exchange=%q key=%q", got.exchange, got.key)
	}
	if got.msg.DeliveryMode != amqp.Persistent || got.msg.ContentType != "application/json" {
		t.Fatalf("unexpected publishing %+v", got.msg)
	}
	var decoded domain.TransactionApplied
	if err := json.Unmarshal(got.msg.Body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.TransactionID != event.TransactionID || decoded.Balance != -100 || !decoded.OccurredAt.Equal(event.OccurredAt) {
		t.Fatalf("decoded=%+v want=%+v", decoded, event)
	}
}

func TestPublishError(t *testing.T) {
	boom := errors.New("channel closed")
	p := NewPublisher(&fakeChannel{err: boom}, "ledger_events")
	if err := p.Publish(context.Background(), "transaction.applied", map[string]int{"a": 1}); !errors.Is(err, boom) {
		t.Fatalf("Publish() error = %v, want wrapped %v", err, boom)
	}
	if err := p.Publish(context.Background(), "transaction.applied", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
