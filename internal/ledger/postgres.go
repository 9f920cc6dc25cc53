package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const transactionColumns = `id, wallet_id, type, amount, status, reference, counterparty_wallet_id, metadata, created_at`

// PostgresLedger persists transactions in PostgreSQL. Wallet balances live in
// the wallets table and move in the same database transaction as the status
// writes, so a crash mid-operation leaves neither applied.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Register verifies the wallet row exists. The wallet store creates the row
// with a zero balance, so there is nothing to insert here.
func (l *PostgresLedger) Register(ctx context.Context, walletID string) error {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return ErrWalletNotFound
	}
	var exists bool
	if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrWalletNotFound
	}
	return nil
}

// Balance returns the stored balance for the wallet.
func (l *PostgresLedger) Balance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return decimal.Zero, ErrWalletNotFound
	}
	var balance decimal.Decimal
	if err := l.db.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1`, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}

// CreatePending inserts a pending transaction row.
func (l *PostgresLedger) CreatePending(ctx context.Context, walletID string, txType TransactionType, amount decimal.Decimal, ref string, metadata map[string]string) (Transaction, error) {
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return Transaction{}, ErrWalletNotFound
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

	var metadataJSON []byte
	if len(metadata) > 0 {
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return Transaction{}, err
		}
	}

	_, err = l.db.Exec(ctx, `INSERT INTO transactions (id, wallet_id, type, amount, status, reference, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.MustParse(txn.ID), walletUUID, string(txType), amount, string(StatusPending), ref, metadataJSON, txn.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return Transaction{}, ErrDuplicateReference
			case pgForeignKeyViolation:
				return Transaction{}, ErrWalletNotFound
			}
		}
		return Transaction{}, err
	}
	return txn, nil
}

// FindByReference returns the earliest transaction carrying the reference.
func (l *PostgresLedger) FindByReference(ctx context.Context, ref string) (Transaction, error) {
	row := l.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE reference = $1 ORDER BY created_at, type LIMIT 1`, ref)
	return scanTransaction(row)
}

// Settle locks the pending transaction and its wallet, flips the status, and
// on success credits the wallet balance. Both writes commit together.
func (l *PostgresLedger) Settle(ctx context.Context, ref string, status TransactionStatus) (Settlement, error) {
	if status != StatusSuccess && status != StatusFailed {
		return Settlement{}, fmt.Errorf("settle %s: status %q is not terminal", ref, status)
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Settlement{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE reference = $1 ORDER BY created_at, type LIMIT 1 FOR UPDATE`, ref)
	txn, err := scanTransaction(row)
	if err != nil {
		return Settlement{}, err
	}

	walletUUID := uuid.MustParse(txn.WalletID)

	var balance decimal.Decimal
	if err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, walletUUID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settlement{}, ErrWalletNotFound
		}
		return Settlement{}, err
	}

	if txn.Status != StatusPending {
		return Settlement{Transaction: txn, Balance: balance}, ErrAlreadySettled
	}

	if _, err := tx.Exec(ctx, `UPDATE transactions SET status = $1 WHERE id = $2`, string(status), uuid.MustParse(txn.ID)); err != nil {
		return Settlement{}, err
	}

	if status == StatusSuccess {
		if err := tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $1 WHERE id = $2 RETURNING balance`,
			txn.Amount, walletUUID).Scan(&balance); err != nil {
			return Settlement{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Settlement{}, err
	}

	txn.Status = status
	return Settlement{Transaction: txn, Balance: balance}, nil
}

// Transfer locks both wallet rows in ascending id order, re-checks the sender
// balance under the lock, and writes the two success legs plus both balance
// updates in one transaction.
func (l *PostgresLedger) Transfer(ctx context.Context, fromWalletID, toWalletID, ref string, amount decimal.Decimal) (TransferResult, error) {
	if !amount.IsPositive() {
		return TransferResult{}, ErrInsufficientFunds
	}
	if fromWalletID == toWalletID {
		return TransferResult{}, ErrSameWallet
	}

	fromUUID, err := uuid.Parse(fromWalletID)
	if err != nil {
		return TransferResult{}, ErrWalletNotFound
	}
	toUUID, err := uuid.Parse(toWalletID)
	if err != nil {
		return TransferResult{}, ErrWalletNotFound
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Fixed lock order regardless of sender/recipient role to avoid deadlock.
	lockOrder := []uuid.UUID{fromUUID, toUUID}
	if lockOrder[1].String() < lockOrder[0].String() {
		lockOrder[0], lockOrder[1] = lockOrder[1], lockOrder[0]
	}
	balances := make(map[uuid.UUID]decimal.Decimal, 2)
	for _, id := range lockOrder {
		var balance decimal.Decimal
		if err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, id).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return TransferResult{}, ErrWalletNotFound
			}
			return TransferResult{}, err
		}
		balances[id] = balance
	}

	var refExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE reference = $1)`, ref).Scan(&refExists); err != nil {
		return TransferResult{}, err
	}
	if refExists {
		return TransferResult{}, ErrDuplicateReference
	}

	if balances[fromUUID].LessThan(amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	outID := uuid.New()
	inID := uuid.New()
	const insertLeg = `INSERT INTO transactions (id, wallet_id, type, amount, status, reference, counterparty_wallet_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.Exec(ctx, insertLeg, outID, fromUUID, string(TypeTransferOut), amount.Neg(), string(StatusSuccess), ref, toUUID, now); err != nil {
		return TransferResult{}, err
	}
	if _, err := tx.Exec(ctx, insertLeg, inID, toUUID, string(TypeTransferIn), amount, string(StatusSuccess), ref, fromUUID, now); err != nil {
		return TransferResult{}, err
	}

	var fromBalance, toBalance decimal.Decimal
	if err := tx.QueryRow(ctx, `UPDATE wallets SET balance = balance - $1 WHERE id = $2 RETURNING balance`, amount, fromUUID).Scan(&fromBalance); err != nil {
		return TransferResult{}, err
	}
	if err := tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $1 WHERE id = $2 RETURNING balance`, amount, toUUID).Scan(&toBalance); err != nil {
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		Reference:   ref,
		OutID:       outID.String(),
		InID:        inID.String(),
		FromBalance: fromBalance,
		ToBalance:   toBalance,
	}, nil
}

// ListByWallet returns a page of the wallet's history, newest first.
func (l *PostgresLedger) ListByWallet(ctx context.Context, walletID string, filter Filter, page Page) ([]Transaction, int, error) {
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return nil, 0, ErrWalletNotFound
	}
	page = page.Normalize()

	conds := []string{"wallet_id = $1"}
	args := []any{walletUUID}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := l.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)+1, len(args)+2)
	rows, err := l.db.Query(ctx, query, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		txn          Transaction
		id           uuid.UUID
		walletID     uuid.UUID
		txType       string
		status       string
		counterparty *uuid.UUID
		metadataJSON []byte
		createdAt    time.Time
	)
	if err := row.Scan(&id, &walletID, &txType, &txn.Amount, &status, &txn.Reference, &counterparty, &metadataJSON, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	txn.ID = id.String()
	txn.WalletID = walletID.String()
	txn.Type = TransactionType(txType)
	txn.Status = TransactionStatus(status)
	if counterparty != nil {
		txn.CounterpartyWalletID = counterparty.String()
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &txn.Metadata); err != nil {
			return Transaction{}, err
		}
	}
	txn.CreatedAt = createdAt.UTC()
	return txn, nil
}
