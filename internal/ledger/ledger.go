package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrWalletNotFound occurs when a balance operation targets a wallet the
	// ledger does not know about.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound occurs when no transaction exists for a reference.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInsufficientFunds occurs when the source wallet lacks available
	// balance to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateReference indicates the provided reference already exists
	// and therefore the operation should be treated as idempotent.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrAlreadySettled indicates the transaction is already terminal. Webhook
	// redelivery paths treat this as a successful no-op.
	ErrAlreadySettled = errors.New("transaction already settled")

	// ErrSameWallet occurs when a transfer names the same wallet as both
	// source and destination.
	ErrSameWallet = errors.New("transfer source and destination must differ")
)

// TransactionType classifies a balance-affecting event.
type TransactionType string

const (
	TypeDeposit     TransactionType = "deposit"
	TypeTransferOut TransactionType = "transfer_out"
	TypeTransferIn  TransactionType = "transfer_in"
)

// TransactionStatus tracks a transaction through its lifecycle. Terminal
// transactions are never mutated again.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

// Transaction is one immutable-once-terminal ledger entry. Amount is signed:
// positive for credits, negative for debits.
type Transaction struct {
	ID                   string
	WalletID             string
	Type                 TransactionType
	Amount               decimal.Decimal
	Status               TransactionStatus
	Reference            string
	CounterpartyWalletID string
	Metadata             map[string]string
	CreatedAt            time.Time
}

// Filter narrows a wallet history query. Zero values match everything.
type Filter struct {
	Type   TransactionType
	Status TransactionStatus
	From   time.Time
	To     time.Time
}

// MaxPageSize caps history page sizes.
const MaxPageSize = 200

const defaultPageSize = 20

// Page describes pagination bounds for history queries.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Settlement captures the outcome of driving a pending transaction terminal.
type Settlement struct {
	Transaction Transaction
	Balance     decimal.Decimal
}

// TransferResult captures the outcome of a two-leg wallet transfer.
type TransferResult struct {
	Reference   string
	OutID       string
	InID        string
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// Balance-mutating operations are atomic: the wallet balance and the
// transaction rows move together or not at all.
type Ledger interface {
	// Register prepares balance tracking for a newly created wallet.
	Register(ctx context.Context, walletID string) error

	// Balance returns the current balance for a wallet.
	Balance(ctx context.Context, walletID string) (decimal.Decimal, error)

	// CreatePending records a pending transaction awaiting settlement.
	CreatePending(ctx context.Context, walletID string, txType TransactionType, amount decimal.Decimal, ref string, metadata map[string]string) (Transaction, error)

	// FindByReference returns the earliest transaction carrying the reference.
	FindByReference(ctx context.Context, ref string) (Transaction, error)

	// Settle drives a pending transaction to the given terminal status,
	// crediting the owning wallet when the status is StatusSuccess. A
	// transaction that is already terminal yields ErrAlreadySettled.
	Settle(ctx context.Context, ref string, status TransactionStatus) (Settlement, error)

	// Transfer atomically debits one wallet and credits another, writing
	// success transfer-out and transfer-in legs that share the reference.
	Transfer(ctx context.Context, fromWalletID, toWalletID, ref string, amount decimal.Decimal) (TransferResult, error)

	// ListByWallet returns a filtered, paginated history for a wallet ordered
	// by creation time descending, along with the total match count.
	ListByWallet(ctx context.Context, walletID string, filter Filter, page Page) ([]Transaction, int, error)
}
