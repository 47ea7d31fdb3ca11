package domain

import (
	"math"
	"time"
)

// Balance 客戶目前的餘額，Value 可以是負數但不得低於 -Limit
type Balance struct {
	CustomerID int64     `json:"customer_id"`
	Limit      int64     `json:"limit"`
	Value      int64     `json:"value"`
	AsOf       time.Time `json:"as_of"`
}

// Admit 計算套用 delta 之後的餘額，Balance 本身不會被修改
// 低於 -limit 時回傳 ErrInsufficientLimit，超出 int64 時回傳 ErrBalanceOverflow
// limit 必須 >= 0
func (b *Balance) Admit(delta, limit int64) (int64, error) {
	if delta > 0 {
		if b.Value > math.MaxInt64-delta {
			return b.Value, ErrBalanceOverflow
		}
		return b.Value + delta, nil
	}
	// 等同 b.Value+delta < -limit，先移項才不會溢位
	if b.Value < -limit-delta {
		return b.Value, ErrInsufficientLimit
	}
	return b.Value + delta, nil
}

// BalanceSnapshot 交易成功後回傳給呼叫端的結果
type BalanceSnapshot struct {
	Limit int64 `json:"limit"`
	Value int64 `json:"value"`
}

// Statement 餘額加上最近 N 筆交易 (新到舊)，不落地
type Statement struct {
	Balance      Balance       `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}
