package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidateTransaction(t *testing.T) {
	tests := []struct {
		name        string
		amount      int64
		kind        TransactionKind
		description string
		want        error
	}{
		{"credit ok", 100, TransactionKindCredit, "salario", nil},
		{"debit ok", 1, TransactionKindDebit, "x", nil},
		{"ten runes", 1, TransactionKindDebit, "0123456789", nil},
		{"multibyte ten runes", 1, TransactionKindCredit, "açãoaçãoaç", nil},
		{"zero amount", 0, TransactionKindCredit, "abc", ErrInvalidAmount},
		{"negative amount", -5, TransactionKindDebit, "abc", ErrInvalidAmount},
		{"unknown kind", 10, TransactionKind("x"), "abc", ErrInvalidKind},
		{"empty kind", 10, TransactionKind(""), "abc", ErrInvalidKind},
		{"empty description", 10, TransactionKindCredit, "", ErrInvalidDescription},
		{"long description", 10, TransactionKindCredit, "01234567890", ErrInvalidDescription},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransaction(tt.amount, tt.kind, tt.description)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ValidateTransaction() err=%v want=%v", err, tt.want)
			}
			if tt.want != nil && !errors.Is(err, ErrValidation) {
				t.Fatalf("err=%v should wrap ErrValidation", err)
			}
		})
	}
}

func TestNewTransaction(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	tx, err := NewTransaction(3, 250, TransactionKindDebit, "pix", now)
	if err != nil {
		t.Fatal(err)
	}
	if tx.CustomerID != 3 || tx.Amount != 250 || tx.Kind != TransactionKindDebit || !tx.OccurredAt.Equal(now) {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if tx.Delta() != -250 {
		t.Fatalf("Delta()=%d want=-250", tx.Delta())
	}
	other, _ := NewTransaction(3, 250, TransactionKindCredit, "pix", now)
	if other.ID == tx.ID {
		t.Fatal("transaction ids should be unique")
	}
	if other.Delta() != 250 {
		t.Fatalf("Delta()=%d want=250", other.Delta())
	}

	if _, err := NewTransaction(3, 0, TransactionKindDebit, "pix", now); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
}

func TestDirectory(t *testing.T) {
	d, err := NewDirectory(DefaultCustomers())
	if err != nil {
		t.Fatal(err)
	}
	want := map[int64]int64{1: 100000, 2: 80000, 3: 1000000, 4: 10000000, 5: 500000}
	for id, limit := range want {
		got, err := d.LimitOf(id)
		if err != nil {
			t.Fatalf("LimitOf(%d) err=%v", id, err)
		}
		if got != limit {
			t.Fatalf("LimitOf(%d)=%d want=%d", id, got, limit)
		}
	}
	for _, id := range []int64{0, -1, 6, 99} {
		if _, err := d.LimitOf(id); !errors.Is(err, ErrCustomerNotFound) {
			t.Fatalf("LimitOf(%d) want ErrCustomerNotFound, got %v", id, err)
		}
	}

	customers := d.Customers()
	if len(customers) != 5 || customers[0].ID != 1 || customers[4].ID != 5 {
		t.Fatalf("Customers()=%v", customers)
	}
	customers[0].Limit = 1
	if l, _ := d.LimitOf(1); l != 100000 {
		t.Fatal("Customers() must return a copy")
	}
}

func TestNewDirectoryRejectsBadTable(t *testing.T) {
	if _, err := NewDirectory([]Customer{{ID: 1, Limit: 10}, {ID: 1, Limit: 20}}); err == nil {
		t.Fatal("duplicated id should be rejected")
	}
	if _, err := NewDirectory([]Customer{{ID: 1, Limit: -1}}); err == nil {
		t.Fatal("negative limit should be rejected")
	}
}

func TestBalanceAdmit(t *testing.T) {
	b := &Balance{CustomerID: 1, Limit: 1000, Value: 0}

	next, err := b.Admit(-1000, 1000)
	if err != nil || next != -1000 {
		t.Fatalf("Admit(-1000)=%d,%v want -1000,nil", next, err)
	}

	b.Value = -1000
	if _, err := b.Admit(-1, 1000); !errors.Is(err, ErrInsufficientLimit) {
		t.Fatalf("want ErrInsufficientLimit, got %v", err)
	}
	if b.Value != -1000 {
		t.Fatalf("Admit must not mutate, value=%d", b.Value)
	}

	next, err = b.Admit(1_000_000_000, 1000)
	if err != nil || next != 999_999_000 {
		t.Fatalf("credits have no upper bound, got %d,%v", next, err)
	}
}

func TestBalanceAdmitAtInt64Boundary(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		delta int64
		limit int64
		want  int64
		err   error
	}{
		{"debit max from small negative", -2, -math.MaxInt64, 100000, -2, ErrInsufficientLimit},
		{"debit max with max limit", 0, -math.MaxInt64, math.MaxInt64, -math.MaxInt64, nil},
		{"debit below max limit", -1, -math.MaxInt64, math.MaxInt64, -1, ErrInsufficientLimit},
		{"credit max from positive", 1, math.MaxInt64, 100000, 1, ErrBalanceOverflow},
		{"credit up to max", 1, math.MaxInt64 - 1, 100000, math.MaxInt64, nil},
		{"credit max from floor", -100000, math.MaxInt64, 100000, math.MaxInt64 - 100000, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Balance{CustomerID: 1, Limit: tt.limit, Value: tt.value}
			got, err := b.Admit(tt.delta, tt.limit)
			if !errors.Is(err, tt.err) || got != tt.want {
				t.Fatalf("Admit(%d)=%d,%v want %d,%v", tt.delta, got, err, tt.want, tt.err)
			}
			if b.Value != tt.value {
				t.Fatalf("Admit must not mutate, value=%d", b.Value)
			}
		})
	}
	if !errors.Is(ErrBalanceOverflow, ErrValidation) {
		t.Fatal("ErrBalanceOverflow should be a validation error")
	}
}
