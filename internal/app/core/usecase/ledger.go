package usecase

import (
	"context"
	"time"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// LedgerTx 是單一客戶原子操作內可用的動作
// 所有動作都在 Store.Atomically 的範圍內執行，要嘛全部生效，要嘛全部不生效
type LedgerTx interface {
	// ReadBalance 讀取 (並鎖定) 餘額，找不到時回傳 nil, nil
	ReadBalance(ctx context.Context, customerID int64) (*domain.Balance, error)
	// ConditionalWriteBalance 只有在目前餘額等於 expected 時才寫入 newValue，回傳影響筆數
	ConditionalWriteBalance(ctx context.Context, customerID, expected, newValue int64) (int64, error)
	// AppendTransaction 新增一筆交易紀錄，回傳影響筆數
	AppendTransaction(ctx context.Context, tran *domain.Transaction) (int64, error)
}

// Store 是帳務儲存層的介面
type Store interface {
	// Seed 為每個客戶建立餘額列 (已存在則略過)
	Seed(ctx context.Context, customers []domain.Customer) error
	// Atomically 以單一客戶為範圍執行 fn，fn 回傳錯誤時全部回滾
	Atomically(ctx context.Context, customerID int64, fn func(ctx context.Context, tx LedgerTx) error) error
	// ReadBalance 讀取目前餘額，找不到時回傳 nil, nil
	ReadBalance(ctx context.Context, customerID int64) (*domain.Balance, error)
	// ListRecentTransactions 由新到舊列出最近 limit 筆交易
	ListRecentTransactions(ctx context.Context, customerID int64, limit int) ([]domain.Transaction, error)
	// Close 釋放資源
	Close() error
}

// EventPublisher 交易成功後的事件出口
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// CachedResponse 以 Idempotency-Key 保存的 HTTP 回應
type CachedResponse struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
}

// IdempotencyRepository 保存重送請求的回應
type IdempotencyRepository interface {
	// Get 找不到時回傳 nil, nil
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Save(ctx context.Context, key string, response CachedResponse, ttl time.Duration) error
	// Lock 標記 key 處理中，已被其他請求持有時回傳 false
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
