package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
)

func TestTransactionMapping(t *testing.T) {
	at := time.Date(2024, 1, 17, 2, 34, 38, 543030000, time.UTC)
	tran, err := domain.NewTransaction(4, 1000, domain.TransactionKindDebit, "descricao", at)
	if err != nil {
		t.Fatal(err)
	}

	row := toSQLTransaction(tran)
	if len(row.RefID) != 16 || row.Kind != "d" || row.CustomerID != 4 {
		t.Fatalf("unexpected row %+v", row)
	}

	back, err := row.toDomain()
	if err != nil {
		t.Fatal(err)
	}
	if back.ID != tran.ID || back.Amount != 1000 || back.Kind != domain.TransactionKindDebit ||
		back.Description != "descricao" || !back.OccurredAt.Equal(at) {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, tran)
	}

	row.RefID = []byte{1, 2, 3}
	if _, err := row.toDomain(); err == nil {
		t.Fatal("short ref_id should fail")
	}
}

func TestBalanceMapping(t *testing.T) {
	row := &sqlBalance{CustomerID: 2, CreditLimit: 80000, Value: -500, UpdatedAt: 1706000000000}
	b := row.toDomain()
	if b.CustomerID != 2 || b.Limit != 80000 || b.Value != -500 {
		t.Fatalf("unexpected balance %+v", b)
	}
	if b.AsOf.UnixMilli() != 1706000000000 {
		t.Fatalf("AsOf=%v", b.AsOf)
	}
	if (&sqlBalance{}).TableName() != "balances" || (&sqlTransaction{}).TableName() != "transactions" {
		t.Fatal("unexpected table names")
	}
}

const (
	selectForUpdate = "SELECT \\* FROM `balances` WHERE customer_id = \\?.* FOR UPDATE"
	casUpdate       = "UPDATE `balances` SET .* WHERE customer_id = \\? AND value = \\?"
	insertTran      = "INSERT INTO `transactions`"
)

// newMockStore 以 sqlmock 取代真的 MySQL，SQL 仍由 GORM 的 MySQL dialector 產生
func newMockStore(t *testing.T) (*usecase.CoreUseCase, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}

	dir, err := domain.NewDirectory(domain.DefaultCustomers())
	if err != nil {
		t.Fatal(err)
	}
	store := NewMySQLStore(mysql.NewClientWithDB(db))
	return usecase.NewCoreUseCase(dir, store), mock
}

func balanceRow(customerID, limit, value int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"customer_id", "credit_limit", "value", "updated_at"}).
		AddRow(customerID, limit, value, int64(1706000000000))
}

func TestApplyTransactionLocksAndCompareAndSwaps(t *testing.T) {
	core, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WillReturnRows(balanceRow(1, 100000, -500))
	mock.ExpectExec(casUpdate).
		WithArgs(sqlmock.AnyArg(), int64(-1500), int64(1), int64(-500)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertTran).WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	snap, err := core.ApplyTransaction(context.Background(), 1, 1000, domain.TransactionKindDebit, "debito")
	if err != nil {
		t.Fatalf("ApplyTransaction() error = %v", err)
	}
	if snap.Value != -1500 || snap.Limit != 100000 {
		t.Fatalf("snapshot=%+v", snap)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestApplyTransactionRollsBackWhenCompareAndSwapMisses(t *testing.T) {
	core, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WillReturnRows(balanceRow(1, 100000, 0))
	// 餘額在讀取之後被改掉，UPDATE 沒有命中任何列
	mock.ExpectExec(casUpdate).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insertTran).WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectRollback()

	_, err := core.ApplyTransaction(context.Background(), 1, 10, domain.TransactionKindCredit, "credito")
	if !errors.Is(err, domain.ErrPersistenceInconsistency) {
		t.Fatalf("want ErrPersistenceInconsistency, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestApplyTransactionRejectedDebitWritesNothing(t *testing.T) {
	core, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WillReturnRows(balanceRow(1, 100000, -100000))
	mock.ExpectRollback()

	_, err := core.ApplyTransaction(context.Background(), 1, 1, domain.TransactionKindDebit, "debito")
	if !errors.Is(err, domain.ErrInsufficientLimit) {
		t.Fatalf("want ErrInsufficientLimit, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestApplyTransactionMissingBalanceRow(t *testing.T) {
	core, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WillReturnRows(sqlmock.NewRows([]string{"customer_id", "credit_limit", "value", "updated_at"}))
	mock.ExpectRollback()

	_, err := core.ApplyTransaction(context.Background(), 3, 1, domain.TransactionKindCredit, "credito")
	if !errors.Is(err, domain.ErrPersistenceInconsistency) {
		t.Fatalf("want ErrPersistenceInconsistency, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
