package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 請求格式錯誤，所有欄位驗證錯誤都包裝它
	ErrValidation = errors.New("invalid transaction")

	// ErrInvalidAmount 金額必須為正整數
	ErrInvalidAmount = fmt.Errorf("%w: amount must be a positive integer", ErrValidation)

	// ErrInvalidKind 交易類型只能是 c 或 d
	ErrInvalidKind = fmt.Errorf("%w: kind must be c or d", ErrValidation)

	// ErrInvalidDescription 描述長度必須在 1 到 10 之間
	ErrInvalidDescription = fmt.Errorf("%w: description must have 1 to 10 characters", ErrValidation)

	// ErrBalanceOverflow 入帳後餘額超出 int64
	ErrBalanceOverflow = fmt.Errorf("%w: amount overflows balance", ErrValidation)

	// ErrCustomerNotFound 找不到客戶
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInsufficientLimit 扣款後會低於 -limit
	ErrInsufficientLimit = errors.New("insufficient limit")

	// ErrPersistenceInconsistency 儲存層回報的影響筆數與預期不符，或餘額列遺失
	ErrPersistenceInconsistency = errors.New("persistence inconsistency")

	// ErrWALWriteFailed 寫入 WAL 失敗
	ErrWALWriteFailed = errors.New("wal write failed")
)
