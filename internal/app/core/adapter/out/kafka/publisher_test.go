package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishKeysByCustomer(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(w)

	event := domain.TransactionApplied{TransactionID: "t-1", CustomerID: 42, Amount: 10, Kind: domain.TransactionKindCredit}
	if err := p.Publish(context.Background(), domain.RoutingKeyTransactionApplied, event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("msgs=%d want=1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "42" {
		t.Fatalf("key=%q want=42", msg.Key)
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != HeaderRoutingKey || string(msg.Headers[0].Value) != "transaction.applied" {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
}

func TestPublishOtherEventsWithoutKey(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(w)
	if err := p.Publish(context.Background(), "ledger.ping", map[string]string{"ok": "1"}); err != nil {
		t.Fatal(err)
	}
	if w.msgs[0].Key != nil {
		t.Fatalf("key=%q want nil", w.msgs[0].Key)
	}
}

func TestPublishErrorAndClose(t *testing.T) {
	boom := errors.New("leader not available")
	w := &fakeWriter{err: boom}
	p := NewPublisherWithWriter(w)
	if err := p.Publish(context.Background(), "x", 1); !errors.Is(err, boom) {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("Close() error = %v closed=%v", err, w.closed)
	}
}
