package domain

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// 描述長度上下限 (以字元計)
const (
	MinDescriptionLength = 1
	MaxDescriptionLength = 10
)

// TransactionKind 交易類型，沿用 wire 格式的單一字元
type TransactionKind string

const (
	// 入帳
	TransactionKindCredit TransactionKind = "c"
	// 扣款
	TransactionKindDebit TransactionKind = "d"
)

// Valid 回報是否為已知類型
func (k TransactionKind) Valid() bool {
	return k == TransactionKindCredit || k == TransactionKindDebit
}

// Transaction 交易紀錄，寫入後不可變
// Amount 永遠為正數，正負號由 Kind 決定
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	CustomerID  int64           `json:"customer_id"`
	Amount      int64           `json:"amount"`
	Kind        TransactionKind `json:"kind"`
	Description string          `json:"description"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Delta 回傳這筆交易對餘額的影響
func (t *Transaction) Delta() int64 {
	if t.Kind == TransactionKindDebit {
		return -t.Amount
	}
	return t.Amount
}

// ValidateTransaction 檢查交易請求的欄位，不碰任何儲存層
//
// 參數:
//
//	amount: 金額
//	kind: 交易類型
//	description: 描述
//
// 回傳:
//
//	error: ErrValidation 家族的錯誤
func ValidateTransaction(amount int64, kind TransactionKind, description string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !kind.Valid() {
		return ErrInvalidKind
	}
	n := utf8.RuneCountInString(description)
	if n < MinDescriptionLength || n > MaxDescriptionLength {
		return ErrInvalidDescription
	}
	return nil
}

// NewTransaction 建立一筆已驗證的交易
func NewTransaction(customerID, amount int64, kind TransactionKind, description string, now time.Time) (*Transaction, error) {
	if err := ValidateTransaction(amount, kind, description); err != nil {
		return nil, err
	}
	return &Transaction{
		ID:          uuid.New(),
		CustomerID:  customerID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		OccurredAt:  now,
	}, nil
}
