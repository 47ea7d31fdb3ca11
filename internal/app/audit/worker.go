package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// Record 稽核紀錄，一筆交易事件對應一筆
type Record struct {
	TransactionID string                 `bson:"_id"`
	CustomerID    int64                  `bson:"customer_id"`
	Amount        int64                  `bson:"amount"`
	Kind          domain.TransactionKind `bson:"kind"`
	Description   string                 `bson:"description"`
	Balance       int64                  `bson:"balance"`
	Limit         int64                  `bson:"limit"`
	OccurredAt    time.Time              `bson:"occurred_at"`
	RoutingKey    string                 `bson:"routing_key"`
	ProcessedAt   time.Time              `bson:"processed_at"`
}

// Repository 稽核紀錄的儲存層
type Repository interface {
	// Save 重複的 TransactionID 視為成功
	Save(ctx context.Context, record Record) error
}

// Worker 消費交易事件並寫入稽核紀錄
type Worker struct {
	repo        Repository
	saveTimeout time.Duration
	now         func() time.Time
}

func NewWorker(repo Repository) *Worker {
	return &Worker{
		repo:        repo,
		saveTimeout: 5 * time.Second,
		now:         time.Now,
	}
}

// errMalformed 無法解析的訊息，重送也不會成功
type errMalformed struct {
	err error
}

func (e errMalformed) Error() string { return "malformed event: " + e.err.Error() }
func (e errMalformed) Unwrap() error { return e.err }

// Handle 解析一則事件並寫入
func (w *Worker) Handle(ctx context.Context, routingKey string, body []byte) error {
	var event domain.TransactionApplied
	if err := json.Unmarshal(body, &event); err != nil {
		return errMalformed{err}
	}
	if event.TransactionID == "" {
		return errMalformed{fmt.Errorf("missing transaction_id")}
	}

	saveCtx, cancel := context.WithTimeout(ctx, w.saveTimeout)
	defer cancel()
	return w.repo.Save(saveCtx, Record{
		TransactionID: event.TransactionID,
		CustomerID:    event.CustomerID,
		Amount:        event.Amount,
		Kind:          event.Kind,
		Description:   event.Description,
		Balance:       event.Balance,
		Limit:         event.Limit,
		OccurredAt:    event.OccurredAt,
		RoutingKey:    routingKey,
		ProcessedAt:   w.now().UTC(),
	})
}

// Run 處理 deliveries 直到 ctx 結束或 channel 關閉
// 格式錯誤的訊息 Nack 不重送，寫入失敗則 Nack 重新排隊
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			w.process(ctx, d)
		}
	}
}

func (w *Worker) process(ctx context.Context, d amqp.Delivery) {
	err := w.Handle(ctx, d.RoutingKey, d.Body)
	switch err.(type) {
	case nil:
		if err := d.Ack(false); err != nil {
			log.Error().Err(err).Msg("failed to ack delivery")
		}
	case errMalformed:
		log.Warn().Err(err).Bytes("body", d.Body).Msg("dropping malformed event")
		if err := d.Nack(false, false); err != nil {
			log.Error().Err(err).Msg("failed to nack delivery")
		}
	default:
		log.Error().Err(err).Msg("failed to save audit record")
		if err := d.Nack(false, true); err != nil {
			log.Error().Err(err).Msg("failed to nack delivery")
		}
	}
}
