package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func registerWallet(t *testing.T, l Ledger) string {
	t.Helper()
	id := uuid.NewString()
	if err := l.Register(context.Background(), id); err != nil {
		t.Fatalf("register wallet: %v", err)
	}
	return id
}

func TestInMemoryLedger_TransferMovesBothBalances(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	a := registerWallet(t, l)
	b := registerWallet(t, l)
	SeedBalance(l, a, decimal.NewFromInt(50_000))
	SeedBalance(l, b, decimal.NewFromInt(1_000))

	res, err := l.Transfer(ctx, a, b, "trf_1", decimal.NewFromInt(5_000))
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !res.FromBalance.Equal(decimal.NewFromInt(45_000)) {
		t.Fatalf("expected sender balance 45000, got %s", res.FromBalance)
	}
	if !res.ToBalance.Equal(decimal.NewFromInt(6_000)) {
		t.Fatalf("expected recipient balance 6000, got %s", res.ToBalance)
	}

	outTxns, _, err := l.ListByWallet(ctx, a, Filter{}, Page{})
	if err != nil {
		t.Fatalf("list sender: %v", err)
	}
	if len(outTxns) != 1 || outTxns[0].Type != TypeTransferOut {
		t.Fatalf("expected one transfer_out leg, got %+v", outTxns)
	}
	if !outTxns[0].Amount.Equal(decimal.NewFromInt(-5_000)) {
		t.Fatalf("expected debit of -5000, got %s", outTxns[0].Amount)
	}
	if outTxns[0].CounterpartyWalletID != b {
		t.Fatalf("expected counterparty %s, got %s", b, outTxns[0].CounterpartyWalletID)
	}

	inTxns, _, err := l.ListByWallet(ctx, b, Filter{}, Page{})
	if err != nil {
		t.Fatalf("list recipient: %v", err)
	}
	if len(inTxns) != 1 || inTxns[0].Type != TypeTransferIn {
		t.Fatalf("expected one transfer_in leg, got %+v", inTxns)
	}
	if inTxns[0].Reference != outTxns[0].Reference {
		t.Fatal("transfer legs must share one reference")
	}
}

func TestInMemoryLedger_TransferInsufficientFunds(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	a := registerWallet(t, l)
	b := registerWallet(t, l)
	SeedBalance(l, a, decimal.NewFromInt(100))

	if _, err := l.Transfer(ctx, a, b, "trf_over", decimal.NewFromInt(500)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balance, _ := l.Balance(ctx, a)
	if !balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("sender balance changed on rejected transfer: %s", balance)
	}
	if _, total, _ := l.ListByWallet(ctx, a, Filter{}, Page{}); total != 0 {
		t.Fatalf("expected no ledger entries, got %d", total)
	}
}

func TestInMemoryLedger_TransferSameWalletRejected(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	a := registerWallet(t, l)
	SeedBalance(l, a, decimal.NewFromInt(1_000))

	_, err := l.Transfer(ctx, a, a, "trf_same", decimal.NewFromInt(400))
	if !errors.Is(err, ErrSameWallet) {
		t.Fatalf("expected ErrSameWallet, got %v", err)
	}

	balance, err := l.Balance(ctx, a)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(1_000)) {
		t.Fatalf("expected balance 1000 after rejected transfer, got %s", balance)
	}
	txns, _, err := l.ListByWallet(ctx, a, Filter{}, Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 0 {
		t.Fatalf("expected no legs written, got %+v", txns)
	}
}

func TestInMemoryLedger_DuplicateReference(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	a := registerWallet(t, l)
	b := registerWallet(t, l)
	SeedBalance(l, a, decimal.NewFromInt(5_000))

	if _, err := l.Transfer(ctx, a, b, "trf_dup", decimal.NewFromInt(500)); err != nil {
		t.Fatalf("initial transfer failed: %v", err)
	}
	if _, err := l.Transfer(ctx, a, b, "trf_dup", decimal.NewFromInt(500)); !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference error, got %v", err)
	}

	if _, err := l.CreatePending(ctx, a, TypeDeposit, decimal.NewFromInt(100), "trf_dup", nil); !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference error for pending, got %v", err)
	}
}

func TestInMemoryLedger_SettleCreditsOnce(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	w := registerWallet(t, l)

	amount := decimal.NewFromInt(5_000)
	if _, err := l.CreatePending(ctx, w, TypeDeposit, amount, "dep_1", nil); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	settled, err := l.Settle(ctx, "dep_1", StatusSuccess)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Transaction.Status != StatusSuccess {
		t.Fatalf("expected success status, got %s", settled.Transaction.Status)
	}
	if !settled.Balance.Equal(amount) {
		t.Fatalf("expected balance 5000, got %s", settled.Balance)
	}

	// Replay must not credit again.
	again, err := l.Settle(ctx, "dep_1", StatusSuccess)
	if !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected already settled, got %v", err)
	}
	if !again.Balance.Equal(amount) {
		t.Fatalf("replay changed balance: %s", again.Balance)
	}
}

func TestInMemoryLedger_SettleFailedLeavesBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	w := registerWallet(t, l)

	if _, err := l.CreatePending(ctx, w, TypeDeposit, decimal.NewFromInt(2_000), "dep_fail", nil); err != nil {
		t.Fatalf("create pending: %v", err)
	}
	settled, err := l.Settle(ctx, "dep_fail", StatusFailed)
	if err != nil {
		t.Fatalf("settle failed status: %v", err)
	}
	if settled.Transaction.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", settled.Transaction.Status)
	}
	balance, _ := l.Balance(ctx, w)
	if !balance.IsZero() {
		t.Fatalf("failed settlement must not credit, balance=%s", balance)
	}
}

func TestInMemoryLedger_UnknownReference(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	if _, err := l.FindByReference(ctx, "missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected transaction not found, got %v", err)
	}
	if _, err := l.Settle(ctx, "missing", StatusSuccess); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected transaction not found, got %v", err)
	}
}

func TestInMemoryLedger_BalanceReconciliation(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	a := registerWallet(t, l)
	b := registerWallet(t, l)

	for i := 0; i < 3; i++ {
		ref := fmt.Sprintf("dep_%d", i)
		if _, err := l.CreatePending(ctx, a, TypeDeposit, decimal.NewFromInt(1_000), ref, nil); err != nil {
			t.Fatalf("create pending: %v", err)
		}
		status := StatusSuccess
		if i == 2 {
			status = StatusFailed
		}
		if _, err := l.Settle(ctx, ref, status); err != nil {
			t.Fatalf("settle: %v", err)
		}
	}
	if _, err := l.Transfer(ctx, a, b, "trf_rec", decimal.NewFromInt(700)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	for _, walletID := range []string{a, b} {
		items, _, err := l.ListByWallet(ctx, walletID, Filter{}, Page{Limit: MaxPageSize})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		sum := decimal.Zero
		for _, txn := range items {
			if txn.Status == StatusSuccess {
				sum = sum.Add(txn.Amount)
			}
		}
		balance, _ := l.Balance(ctx, walletID)
		if !balance.Equal(sum) {
			t.Fatalf("wallet %s: balance %s != success sum %s", walletID, balance, sum)
		}
	}
}

func TestInMemoryLedger_ListFiltersAndPaginates(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	w := registerWallet(t, l)

	for i := 0; i < 5; i++ {
		ref := fmt.Sprintf("dep_list_%d", i)
		if _, err := l.CreatePending(ctx, w, TypeDeposit, decimal.NewFromInt(100), ref, nil); err != nil {
			t.Fatalf("create pending: %v", err)
		}
		if i%2 == 0 {
			if _, err := l.Settle(ctx, ref, StatusSuccess); err != nil {
				t.Fatalf("settle: %v", err)
			}
		}
	}

	items, total, err := l.ListByWallet(ctx, w, Filter{Status: StatusSuccess}, Page{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 successful deposits, got %d", total)
	}
	if len(items) != 2 {
		t.Fatalf("expected page of 2, got %d", len(items))
	}

	rest, total, err := l.ListByWallet(ctx, w, Filter{Status: StatusSuccess}, Page{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if total != 3 || len(rest) != 1 {
		t.Fatalf("expected final page of 1, got %d of %d", len(rest), total)
	}

	if _, _, err := l.ListByWallet(ctx, uuid.NewString(), Filter{}, Page{}); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
}

func TestInMemoryLedger_ConcurrentTransfersStayBalanced(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	a := registerWallet(t, l)
	b := registerWallet(t, l)
	SeedBalance(l, a, decimal.NewFromInt(100_000))

	const workers = 10
	amount := decimal.NewFromInt(500)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := fmt.Sprintf("trf_conc_%d", i)
			if _, err := l.Transfer(ctx, a, b, ref, amount); err != nil {
				t.Errorf("transfer %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	balA, _ := l.Balance(ctx, a)
	balB, _ := l.Balance(ctx, b)
	if !balA.Add(balB).Equal(decimal.NewFromInt(100_000)) {
		t.Fatalf("ledger not balanced after concurrency: %s + %s", balA, balB)
	}
	if !balB.Equal(decimal.NewFromInt(5_000)) {
		t.Fatalf("expected recipient balance 5000, got %s", balB)
	}
}
