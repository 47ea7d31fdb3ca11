package domain

import "time"

// RoutingKeyTransactionApplied 交易成功事件的 routing key
const RoutingKeyTransactionApplied = "transaction.applied"

// TransactionApplied 交易成功寫入後送出的事件
type TransactionApplied struct {
	TransactionID string          `json:"transaction_id"`
	CustomerID    int64           `json:"customer_id"`
	Amount        int64           `json:"amount"`
	Kind          TransactionKind `json:"kind"`
	Description   string          `json:"description"`
	Balance       int64           `json:"balance"`
	Limit         int64           `json:"limit"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewTransactionApplied 由交易與結果組出事件
func NewTransactionApplied(tran *Transaction, snapshot BalanceSnapshot) TransactionApplied {
	return TransactionApplied{
		TransactionID: tran.ID.String(),
		CustomerID:    tran.CustomerID,
		Amount:        tran.Amount,
		Kind:          tran.Kind,
		Description:   tran.Description,
		Balance:       snapshot.Value,
		Limit:         snapshot.Limit,
		OccurredAt:    tran.OccurredAt,
	}
}
