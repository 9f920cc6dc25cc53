package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu           sync.Mutex
	balances     map[string]decimal.Decimal
	transactions []Transaction
	byReference  map[string][]int
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit
// tests and dev mode. It mirrors the Postgres backend's semantics, including
// reference idempotency and the no-overdraft rule.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:    make(map[string]decimal.Decimal),
		byReference: make(map[string][]int),
	}
}

func (l *inMemoryLedger) Register(_ context.Context, walletID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[walletID]; !exists {
		l.balances[walletID] = decimal.Zero
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, walletID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, exists := l.balances[walletID]
	if !exists {
		return decimal.Zero, ErrWalletNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) CreatePending(_ context.Context, walletID string, txType TransactionType, amount decimal.Decimal, ref string, metadata map[string]string) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.balances[walletID]; !exists {
		return Transaction{}, ErrWalletNotFound
	}
	if len(l.byReference[ref]) > 0 {
		return Transaction{}, ErrDuplicateReference
	}

	txn := Transaction{
		ID:        uuid.NewString(),
		WalletID:  walletID,
		Type:      txType,
		Amount:    amount,
		Status:    StatusPending,
		Reference: ref,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	l.append(txn)
	return txn, nil
}

func (l *inMemoryLedger) FindByReference(_ context.Context, ref string) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idxs, ok := l.byReference[ref]
	if !ok || len(idxs) == 0 {
		return Transaction{}, ErrTransactionNotFound
	}
	return l.transactions[idxs[0]], nil
}

func (l *inMemoryLedger) Settle(_ context.Context, ref string, status TransactionStatus) (Settlement, error) {
	if status != StatusSuccess && status != StatusFailed {
		return Settlement{}, ErrAlreadySettled
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idxs, ok := l.byReference[ref]
	if !ok || len(idxs) == 0 {
		return Settlement{}, ErrTransactionNotFound
	}
	txn := &l.transactions[idxs[0]]
	if txn.Status != StatusPending {
		return Settlement{Transaction: *txn, Balance: l.balances[txn.WalletID]}, ErrAlreadySettled
	}

	txn.Status = status
	if status == StatusSuccess {
		l.balances[txn.WalletID] = l.balances[txn.WalletID].Add(txn.Amount)
	}
	return Settlement{Transaction: *txn, Balance: l.balances[txn.WalletID]}, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, fromWalletID, toWalletID, ref string, amount decimal.Decimal) (TransferResult, error) {
	if !amount.IsPositive() {
		return TransferResult{}, ErrInsufficientFunds
	}
	if fromWalletID == toWalletID {
		return TransferResult{}, ErrSameWallet
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.byReference[ref]) > 0 {
		return TransferResult{}, ErrDuplicateReference
	}
	fromBalance, ok := l.balances[fromWalletID]
	if !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	toBalance, ok := l.balances[toWalletID]
	if !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	if fromBalance.LessThan(amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	out := Transaction{
		ID:                   uuid.NewString(),
		WalletID:             fromWalletID,
		Type:                 TypeTransferOut,
		Amount:               amount.Neg(),
		Status:               StatusSuccess,
		Reference:            ref,
		CounterpartyWalletID: toWalletID,
		CreatedAt:            now,
	}
	in := Transaction{
		ID:                   uuid.NewString(),
		WalletID:             toWalletID,
		Type:                 TypeTransferIn,
		Amount:               amount,
		Status:               StatusSuccess,
		Reference:            ref,
		CounterpartyWalletID: fromWalletID,
		CreatedAt:            now,
	}
	l.append(out)
	l.append(in)

	l.balances[fromWalletID] = fromBalance.Sub(amount)
	l.balances[toWalletID] = toBalance.Add(amount)

	return TransferResult{
		Reference:   ref,
		OutID:       out.ID,
		InID:        in.ID,
		FromBalance: l.balances[fromWalletID],
		ToBalance:   l.balances[toWalletID],
	}, nil
}

func (l *inMemoryLedger) ListByWallet(_ context.Context, walletID string, filter Filter, page Page) ([]Transaction, int, error) {
	page = page.Normalize()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.balances[walletID]; !exists {
		return nil, 0, ErrWalletNotFound
	}

	var matched []Transaction
	// Newest first: transactions are appended in chronological order.
	for i := len(l.transactions) - 1; i >= 0; i-- {
		txn := l.transactions[i]
		if txn.WalletID != walletID || !matches(txn, filter) {
			continue
		}
		matched = append(matched, txn)
	}

	total := len(matched)
	if page.Offset >= total {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return matched[page.Offset:end], total, nil
}

func (l *inMemoryLedger) append(txn Transaction) {
	l.transactions = append(l.transactions, txn)
	l.byReference[txn.Reference] = append(l.byReference[txn.Reference], len(l.transactions)-1)
}

func matches(txn Transaction, filter Filter) bool {
	if filter.Type != "" && txn.Type != filter.Type {
		return false
	}
	if filter.Status != "" && txn.Status != filter.Status {
		return false
	}
	if !filter.From.IsZero() && txn.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && txn.CreatedAt.After(filter.To) {
		return false
	}
	return true
}
