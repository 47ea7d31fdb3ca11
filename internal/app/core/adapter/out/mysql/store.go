package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
)

// sqlBalance 對應資料庫的 balances 表
type sqlBalance struct {
	CustomerID  int64 `gorm:"primaryKey;autoIncrement:false"`
	CreditLimit int64 `gorm:"not null"`
	Value       int64 `gorm:"not null;default:0"`
	UpdatedAt   int64 `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlBalance) TableName() string {
	return "balances"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;index:idx_transactions_customer,priority:2"`
	RefID       []byte    `gorm:"column:ref_id;type:binary(16);uniqueIndex"` // 對應 domain.Transaction.ID
	CustomerID  int64     `gorm:"not null;index:idx_transactions_customer,priority:1"`
	Amount      int64     `gorm:"not null"`
	Kind        string    `gorm:"type:char(1);not null"`
	Description string    `gorm:"type:varchar(10);not null"`
	OccurredAt  time.Time `gorm:"type:datetime(6);not null"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func toSQLTransaction(tran *domain.Transaction) *sqlTransaction {
	return &sqlTransaction{
		RefID:       tran.ID[:],
		CustomerID:  tran.CustomerID,
		Amount:      tran.Amount,
		Kind:        string(tran.Kind),
		Description: tran.Description,
		OccurredAt:  tran.OccurredAt,
	}
}

func (t *sqlTransaction) toDomain() (domain.Transaction, error) {
	id, err := uuid.FromBytes(t.RefID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %d: bad ref_id: %w", t.ID, err)
	}
	return domain.Transaction{
		ID:          id,
		CustomerID:  t.CustomerID,
		Amount:      t.Amount,
		Kind:        domain.TransactionKind(t.Kind),
		Description: t.Description,
		OccurredAt:  t.OccurredAt.UTC(),
	}, nil
}

func (b *sqlBalance) toDomain() *domain.Balance {
	return &domain.Balance{
		CustomerID: b.CustomerID,
		Limit:      b.CreditLimit,
		Value:      b.Value,
		AsOf:       time.UnixMilli(b.UpdatedAt).UTC(),
	}
}

// MySQLStore 以 GORM + MySQL 實作 usecase.Store
// 同一客戶的寫入靠 SELECT ... FOR UPDATE 鎖住餘額列，不同客戶互不阻塞
type MySQLStore struct {
	client *mysql.Client
}

func NewMySQLStore(client *mysql.Client) *MySQLStore {
	return &MySQLStore{
		client: client,
	}
}

// Seed 建表並為每個客戶建立餘額列
// 已存在的列只同步額度，不動餘額
func (s *MySQLStore) Seed(ctx context.Context, customers []domain.Customer) error {
	db := s.client.DB().WithContext(ctx)
	if err := db.AutoMigrate(&sqlBalance{}, &sqlTransaction{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if len(customers) == 0 {
		return nil
	}

	rows := make([]sqlBalance, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, sqlBalance{CustomerID: c.ID, CreditLimit: c.Limit})
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"credit_limit"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seed balances: %w", err)
	}
	return nil
}

// Atomically 開一個資料庫交易執行 fn，fn 回傳錯誤時 Rollback
func (s *MySQLStore) Atomically(ctx context.Context, customerID int64, fn func(ctx context.Context, tx usecase.LedgerTx) error) error {
	return s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormTx{db: tx})
	})
}

// ReadBalance 讀取餘額 (不上鎖)
func (s *MySQLStore) ReadBalance(ctx context.Context, customerID int64) (*domain.Balance, error) {
	return readBalance(s.client.DB().WithContext(ctx), customerID)
}

// ListRecentTransactions 由新到舊列出最近 limit 筆交易
func (s *MySQLStore) ListRecentTransactions(ctx context.Context, customerID int64, limit int) ([]domain.Transaction, error) {
	var rows []sqlTransaction
	err := s.client.DB().WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		tran, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, tran)
	}
	return out, nil
}

// Close 關閉資料庫連線
func (s *MySQLStore) Close() error {
	return s.client.Close()
}

func readBalance(db *gorm.DB, customerID int64) (*domain.Balance, error) {
	var row sqlBalance
	err := db.Where("customer_id = ?", customerID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	return row.toDomain(), nil
}

// gormTx 綁定在同一個 *gorm.DB 交易上的 usecase.LedgerTx
type gormTx struct {
	db *gorm.DB
}

// ReadBalance 取得鎖定的餘額列 (悲觀鎖)
func (t *gormTx) ReadBalance(ctx context.Context, customerID int64) (*domain.Balance, error) {
	return readBalance(t.db.Clauses(clause.Locking{Strength: "UPDATE"}), customerID)
}

// ConditionalWriteBalance Compare-And-Swap: 只有 value 仍等於 expected 才更新
func (t *gormTx) ConditionalWriteBalance(ctx context.Context, customerID, expected, newValue int64) (int64, error) {
	res := t.db.Model(&sqlBalance{}).
		Where("customer_id = ? AND value = ?", customerID, expected).
		Updates(map[string]any{
			"value":      newValue,
			"updated_at": time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("update balance: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// AppendTransaction 建立交易紀錄
func (t *gormTx) AppendTransaction(ctx context.Context, tran *domain.Transaction) (int64, error) {
	res := t.db.Create(toSQLTransaction(tran))
	if res.Error != nil {
		return 0, fmt.Errorf("insert transaction: %w", res.Error)
	}
	return res.RowsAffected, nil
}

var _ usecase.Store = (*MySQLStore)(nil)
