package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

// account 單一客戶的狀態，每個客戶有自己的鎖
type account struct {
	mu      sync.RWMutex
	balance domain.Balance
	// 依寫入順序 (舊到新)
	transactions []domain.Transaction
}

// walRecord 一筆 WAL 紀錄同時包含交易與交易後的餘額，重放時兩者一起生效
type walRecord struct {
	Transaction domain.Transaction `json:"transaction"`
	Balance     int64              `json:"balance"`
}

// MutexStore 是一個使用「每個客戶一把 Mutex」實現的記憶體帳本
//
// 結構:
//
//	accounts: 客戶 ID 對應的帳戶狀態
//	mu: 保護 accounts map 本身 (只有 Seed 會寫)
//	wal: Write-Ahead Log 實例 (可為 nil)
type MutexStore struct {
	accounts  map[int64]*account
	mu        sync.RWMutex
	wal       *wal.WAL
	recovered bool
}

// NewMutexStore 建立一個新的 MutexStore 實例
//
// 參數:
//
//	w: Write-Ahead Log 實例，nil 表示不落地
//
// 回傳:
//
//	*MutexStore: MutexStore 實例
func NewMutexStore(w *wal.WAL) *MutexStore {
	return &MutexStore{
		accounts: make(map[int64]*account),
		wal:      w,
	}
}

// Seed 建立缺少的客戶帳戶，第一次呼叫時從 WAL 恢復狀態
func (m *MutexStore) Seed(ctx context.Context, customers []domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range customers {
		if _, ok := m.accounts[c.ID]; ok {
			continue
		}
		m.accounts[c.ID] = &account{
			balance: domain.Balance{CustomerID: c.ID, Limit: c.Limit},
		}
	}

	if m.recovered || m.wal == nil {
		m.recovered = true
		return nil
	}
	if err := m.recoverFromWAL(); err != nil {
		return err
	}
	m.recovered = true
	return nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 Seed 在持有 m.mu 時呼叫，此時還沒有其他請求進來
func (m *MutexStore) recoverFromWAL() error {
	count := 0
	err := m.wal.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		acct, ok := m.accounts[rec.Transaction.CustomerID]
		if !ok {
			return fmt.Errorf("wal references unknown customer %d", rec.Transaction.CustomerID)
		}
		acct.balance.Value = rec.Balance
		acct.transactions = append(acct.transactions, rec.Transaction)
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("recover from wal: %w", err)
	}
	log.Info().Int("records", count).Msg("memory store recovered from wal")
	return nil
}

func (m *MutexStore) lookup(customerID int64) *account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[customerID]
}

// Atomically 鎖住單一客戶後執行 fn
// fn 內的寫入先暫存在 mutexTx，成功後才寫 WAL 並套用到記憶體
func (m *MutexStore) Atomically(ctx context.Context, customerID int64, fn func(ctx context.Context, tx usecase.LedgerTx) error) error {
	acct := m.lookup(customerID)
	if acct == nil {
		// 沒有帳戶: 讓 fn 讀到 nil 餘額自行決定錯誤
		return fn(ctx, &mutexTx{})
	}

	acct.mu.Lock()
	defer acct.mu.Unlock()

	tx := &mutexTx{acct: acct, value: acct.balance.Value}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if tx.pending == nil && !tx.written {
		return nil
	}

	// 1. 寫入 WAL (Critical Path)
	if m.wal != nil && tx.pending != nil {
		if err := m.wal.Write(walRecord{Transaction: *tx.pending, Balance: tx.value}); err != nil {
			log.Error().Err(err).Int64("customer_id", customerID).Msg("wal write failed")
			return domain.ErrWALWriteFailed
		}
	}

	// 2. 套用到記憶體
	acct.balance.Value = tx.value
	if tx.pending != nil {
		acct.transactions = append(acct.transactions, *tx.pending)
	}
	return nil
}

// ReadBalance 取得指定客戶的當前餘額
func (m *MutexStore) ReadBalance(ctx context.Context, customerID int64) (*domain.Balance, error) {
	acct := m.lookup(customerID)
	if acct == nil {
		return nil, nil
	}
	acct.mu.RLock()
	defer acct.mu.RUnlock()
	b := acct.balance
	return &b, nil
}

// ListRecentTransactions 由新到舊列出最近 limit 筆交易
func (m *MutexStore) ListRecentTransactions(ctx context.Context, customerID int64, limit int) ([]domain.Transaction, error) {
	acct := m.lookup(customerID)
	if acct == nil || limit <= 0 {
		return []domain.Transaction{}, nil
	}
	acct.mu.RLock()
	defer acct.mu.RUnlock()

	n := len(acct.transactions)
	if limit > n {
		limit = n
	}
	out := make([]domain.Transaction, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, acct.transactions[i])
	}
	return out, nil
}

// Close 關閉 WAL
func (m *MutexStore) Close() error {
	if m.wal == nil {
		return nil
	}
	return m.wal.Close()
}

// mutexTx 在客戶鎖內暫存寫入
type mutexTx struct {
	acct    *account
	value   int64
	written bool
	pending *domain.Transaction
}

func (t *mutexTx) ReadBalance(ctx context.Context, customerID int64) (*domain.Balance, error) {
	if t.acct == nil || t.acct.balance.CustomerID != customerID {
		return nil, nil
	}
	b := t.acct.balance
	b.Value = t.value
	return &b, nil
}

func (t *mutexTx) ConditionalWriteBalance(ctx context.Context, customerID, expected, newValue int64) (int64, error) {
	if t.acct == nil || t.acct.balance.CustomerID != customerID || t.value != expected {
		return 0, nil
	}
	t.value = newValue
	t.written = true
	return 1, nil
}

func (t *mutexTx) AppendTransaction(ctx context.Context, tran *domain.Transaction) (int64, error) {
	if t.acct == nil || t.acct.balance.CustomerID != tran.CustomerID || t.pending != nil {
		return 0, nil
	}
	cp := *tran
	t.pending = &cp
	return 1, nil
}

var _ usecase.Store = (*MutexStore)(nil)
