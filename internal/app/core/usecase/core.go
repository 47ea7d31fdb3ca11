package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// DefaultStatementSize 帳單預設列出的交易筆數
const DefaultStatementSize = 10

// 一次成功的交易必須影響的筆數: 一筆餘額 + 一筆交易紀錄
const expectedAffectedRows = 2

// CoreUseCase 是核心業務邏輯層
type CoreUseCase struct {
	directory     *domain.Directory
	store         Store
	publisher     EventPublisher
	statementSize int
	now           func() time.Time
}

// Option 設定 CoreUseCase 的選項
type Option func(*CoreUseCase)

// WithPublisher 設定交易成功後的事件出口
func WithPublisher(p EventPublisher) Option {
	return func(c *CoreUseCase) {
		c.publisher = p
	}
}

// WithStatementSize 設定帳單列出的交易筆數
func WithStatementSize(n int) Option {
	return func(c *CoreUseCase) {
		if n > 0 {
			c.statementSize = n
		}
	}
}

// WithClock 替換時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(c *CoreUseCase) {
		c.now = now
	}
}

func NewCoreUseCase(directory *domain.Directory, store Store, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		directory:     directory,
		store:         store,
		statementSize: DefaultStatementSize,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApplyTransaction 套用一筆交易並回傳新的餘額
//
// 參數:
//
//	ctx: 上下文
//	customerID: 客戶 ID
//	amount: 金額 (正數)
//	kind: c 入帳 / d 扣款
//	description: 描述 (1~10 字元)
//
// 回傳:
//
//	domain.BalanceSnapshot: 額度與新餘額
//	error: ErrValidation, ErrCustomerNotFound, ErrInsufficientLimit, ErrPersistenceInconsistency 或儲存層錯誤
func (c *CoreUseCase) ApplyTransaction(ctx context.Context, customerID, amount int64, kind domain.TransactionKind, description string) (domain.BalanceSnapshot, error) {
	// 1. 驗證輸入，不碰儲存層
	tran, err := domain.NewTransaction(customerID, amount, kind, description, c.now().UTC())
	if err != nil {
		return domain.BalanceSnapshot{}, err
	}

	// 2. 查額度
	limit, err := c.directory.LimitOf(customerID)
	if err != nil {
		return domain.BalanceSnapshot{}, err
	}

	// 3. 讀取 -> 檢查 -> 寫入餘額 + 寫入交易，同一個原子單位
	var snapshot domain.BalanceSnapshot
	err = c.store.Atomically(ctx, customerID, func(ctx context.Context, tx LedgerTx) error {
		balance, err := tx.ReadBalance(ctx, customerID)
		if err != nil {
			return err
		}
		if balance == nil {
			return fmt.Errorf("%w: balance row missing for customer %d", domain.ErrPersistenceInconsistency, customerID)
		}

		next, err := balance.Admit(tran.Delta(), limit)
		if err != nil {
			return err
		}

		balanceRows, err := tx.ConditionalWriteBalance(ctx, customerID, balance.Value, next)
		if err != nil {
			return err
		}
		tranRows, err := tx.AppendTransaction(ctx, tran)
		if err != nil {
			return err
		}
		if affected := balanceRows + tranRows; affected != expectedAffectedRows {
			return fmt.Errorf("%w: %d rows affected, want %d", domain.ErrPersistenceInconsistency, affected, expectedAffectedRows)
		}

		snapshot = domain.BalanceSnapshot{Limit: limit, Value: next}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrPersistenceInconsistency) {
			log.Error().Err(err).Int64("customer_id", customerID).Msg("apply transaction left storage untouched")
		}
		return domain.BalanceSnapshot{}, err
	}

	// 4. 發送事件 (Best Effort)，失敗只記錄不影響結果
	if c.publisher != nil {
		event := domain.NewTransactionApplied(tran, snapshot)
		if err := c.publisher.Publish(ctx, domain.RoutingKeyTransactionApplied, event); err != nil {
			log.Warn().Err(err).Str("transaction_id", event.TransactionID).Msg("failed to publish transaction event")
		}
	}
	return snapshot, nil
}

// Statement 取得客戶帳單: 目前餘額 + 最近交易 (新到舊)
func (c *CoreUseCase) Statement(ctx context.Context, customerID int64) (domain.Statement, error) {
	limit, err := c.directory.LimitOf(customerID)
	if err != nil {
		return domain.Statement{}, err
	}

	balance, err := c.store.ReadBalance(ctx, customerID)
	if err != nil {
		return domain.Statement{}, err
	}
	if balance == nil {
		err = fmt.Errorf("%w: balance row missing for customer %d", domain.ErrPersistenceInconsistency, customerID)
		log.Error().Err(err).Msg("statement failed")
		return domain.Statement{}, err
	}

	transactions, err := c.store.ListRecentTransactions(ctx, customerID, c.statementSize)
	if err != nil {
		return domain.Statement{}, err
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}

	balance.Limit = limit
	balance.AsOf = c.now().UTC()
	return domain.Statement{
		Balance:      *balance,
		Transactions: transactions,
	}, nil
}

// Customers 回傳客戶清單
func (c *CoreUseCase) Customers() []domain.Customer {
	return c.directory.Customers()
}
