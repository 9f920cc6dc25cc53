package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kolopay/kolopay/internal/ledger"
)

func TestServiceCreateAndBalance(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)

	ctx := context.Background()
	ownerID := uuid.NewString()
	w, err := svc.Create(ctx, ownerID)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if len(w.WalletNumber) != 13 {
		t.Fatalf("expected 13-digit wallet number, got %q", w.WalletNumber)
	}

	fetched, err := svc.GetByOwner(ctx, ownerID)
	if err != nil {
		t.Fatalf("get by owner: %v", err)
	}
	if fetched.ID != w.ID {
		t.Fatalf("expected wallet %s, got %s", w.ID, fetched.ID)
	}

	byNumber, err := svc.GetByNumber(ctx, w.WalletNumber)
	if err != nil {
		t.Fatalf("get by number: %v", err)
	}
	if byNumber.OwnerID != ownerID {
		t.Fatalf("expected owner %s, got %s", ownerID, byNumber.OwnerID)
	}

	balance, err := svc.Balance(ctx, ownerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("expected zero initial balance, got %s", balance)
	}
}

func TestServiceCreateOnePerOwner(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, ledger.NewInMemory())

	ctx := context.Background()
	ownerID := uuid.NewString()
	if _, err := svc.Create(ctx, ownerID); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := svc.Create(ctx, ownerID); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestServiceCreateRetriesNumberCollision(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, ledger.NewInMemory())

	numbers := []string{"1111111111111", "1111111111111", "2222222222222"}
	svc.numberFn = func() string {
		n := numbers[0]
		if len(numbers) > 1 {
			numbers = numbers[1:]
		}
		return n
	}

	ctx := context.Background()
	first, err := svc.Create(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("create first wallet: %v", err)
	}
	if first.WalletNumber != "1111111111111" {
		t.Fatalf("unexpected first number %q", first.WalletNumber)
	}

	second, err := svc.Create(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("create second wallet: %v", err)
	}
	if second.WalletNumber != "2222222222222" {
		t.Fatalf("expected regenerated number, got %q", second.WalletNumber)
	}
}

func TestServiceBalanceUnknownOwner(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	if _, err := svc.Balance(context.Background(), uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceTransactionsScopedToOwner(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)

	ctx := context.Background()
	ownerID := uuid.NewString()
	w, err := svc.Create(ctx, ownerID)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := led.CreatePending(ctx, w.ID, ledger.TypeDeposit, decimal.NewFromInt(100), "dep_hist", nil); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	items, total, err := svc.Transactions(ctx, ownerID, ledger.Filter{}, ledger.Page{})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Reference != "dep_hist" {
		t.Fatalf("unexpected history: total=%d items=%+v", total, items)
	}
}
