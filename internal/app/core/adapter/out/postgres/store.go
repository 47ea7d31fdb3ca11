package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

// schema 以單句執行，避免依賴 simple protocol
var schema = []string{
	`CREATE TABLE IF NOT EXISTS balances (
		customer_id  BIGINT PRIMARY KEY,
		credit_limit BIGINT NOT NULL CHECK (credit_limit >= 0),
		value        BIGINT NOT NULL DEFAULT 0,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT balance_floor CHECK (value >= -credit_limit)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id          BIGSERIAL PRIMARY KEY,
		ref_id      UUID NOT NULL UNIQUE,
		customer_id BIGINT NOT NULL REFERENCES balances (customer_id),
		amount      BIGINT NOT NULL CHECK (amount > 0),
		kind        CHAR(1) NOT NULL CHECK (kind IN ('c', 'd')),
		description VARCHAR(10) NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions (customer_id, id DESC)`,
}

const (
	seedBalanceSQL = `INSERT INTO balances (customer_id, credit_limit) VALUES ($1, $2)
		ON CONFLICT (customer_id) DO UPDATE SET credit_limit = EXCLUDED.credit_limit`
	selectBalanceSQL = `SELECT customer_id, credit_limit, value, updated_at FROM balances WHERE customer_id = $1`
	updateBalanceSQL = `UPDATE balances SET value = $1, updated_at = now() WHERE customer_id = $2 AND value = $3`
	insertTranSQL    = `INSERT INTO transactions (ref_id, customer_id, amount, kind, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	recentTransSQL = `SELECT ref_id, customer_id, amount, kind, description, occurred_at
		FROM transactions WHERE customer_id = $1 ORDER BY id DESC LIMIT $2`
)

// querier 是 *pgxpool.Pool 與 pgx.Tx 共有的方法
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore 以 pgx 實作 usecase.Store
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Seed 建表並為每個客戶建立餘額列，已存在的列只同步額度
func (s *PostgresStore) Seed(ctx context.Context, customers []domain.Customer) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	batch := &pgx.Batch{}
	for _, c := range customers {
		batch.Queue(seedBalanceSQL, c.ID, c.Limit)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed balances: %w", err)
	}
	return nil
}

// Atomically 在一個 ACID 交易中執行 fn
// 如果 fn 回傳錯誤就 Rollback，成功才 Commit
func (s *PostgresStore) Atomically(ctx context.Context, customerID int64, fn func(ctx context.Context, tx usecase.LedgerTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel: pgx.ReadCommitted, // 靠 FOR UPDATE 序列化同一客戶
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Commit 之後 Rollback 是 no-op
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReadBalance 讀取餘額 (不上鎖)
func (s *PostgresStore) ReadBalance(ctx context.Context, customerID int64) (*domain.Balance, error) {
	return readBalance(ctx, s.pool, selectBalanceSQL, customerID)
}

// ListRecentTransactions 由新到舊列出最近 limit 筆交易
func (s *PostgresStore) ListRecentTransactions(ctx context.Context, customerID int64, limit int) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, recentTransSQL, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		var (
			refID pgtype.UUID
			tran  domain.Transaction
			kind  string
		)
		if err := rows.Scan(&refID, &tran.CustomerID, &tran.Amount, &kind, &tran.Description, &tran.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tran.ID = uuid.UUID(refID.Bytes)
		tran.Kind = domain.TransactionKind(kind)
		tran.OccurredAt = tran.OccurredAt.UTC()
		out = append(out, tran)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// Close 關閉連線池
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func readBalance(ctx context.Context, q querier, query string, customerID int64) (*domain.Balance, error) {
	var (
		b         domain.Balance
		updatedAt time.Time
	)
	err := q.QueryRow(ctx, query, customerID).Scan(&b.CustomerID, &b.Limit, &b.Value, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	b.AsOf = updatedAt.UTC()
	return &b, nil
}

// pgTx 綁定在同一個 pgx.Tx 上的 usecase.LedgerTx
type pgTx struct {
	q querier
}

// ReadBalance 以 SELECT ... FOR UPDATE 鎖住餘額列
func (t *pgTx) ReadBalance(ctx context.Context, customerID int64) (*domain.Balance, error) {
	return readBalance(ctx, t.q, selectBalanceSQL+" FOR UPDATE", customerID)
}

// ConditionalWriteBalance Compare-And-Swap: 只有 value 仍等於 expected 才更新
func (t *pgTx) ConditionalWriteBalance(ctx context.Context, customerID, expected, newValue int64) (int64, error) {
	tag, err := t.q.Exec(ctx, updateBalanceSQL, newValue, customerID, expected)
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AppendTransaction 建立交易紀錄
func (t *pgTx) AppendTransaction(ctx context.Context, tran *domain.Transaction) (int64, error) {
	tag, err := t.q.Exec(ctx, insertTranSQL,
		pgtype.UUID{Bytes: tran.ID, Valid: true},
		tran.CustomerID,
		tran.Amount,
		string(tran.Kind),
		tran.Description,
		tran.OccurredAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ usecase.Store = (*PostgresStore)(nil)
