package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound occurs when no wallet matches the lookup key.
	ErrNotFound = errors.New("wallet not found")

	// ErrAlreadyExists occurs when the owner already holds a wallet.
	ErrAlreadyExists = errors.New("owner already has a wallet")

	// ErrNumberTaken occurs when a generated wallet number collides with an
	// existing one. The service retries generation on this error.
	ErrNumberTaken = errors.New("wallet number already taken")
)

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	FindByOwner(ctx context.Context, ownerID string) (Wallet, error)
	FindByNumber(ctx context.Context, number string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const pgUniqueViolation = "23505"

// Create inserts a wallet row with a zero balance. Uniqueness of both the
// owner and the wallet number is enforced by the storage layer.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(w.OwnerID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, wallet_number, balance, created_at)
        VALUES ($1, $2, $3, $4, $5)`, walletID, ownerID, w.WalletNumber, decimal.Zero, w.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == "wallets_wallet_number_key" {
				return ErrNumberTaken
			}
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByOwner fetches the owner's wallet.
func (r *PostgresRepository) FindByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	ownerUUID, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, wallet_number, created_at FROM wallets WHERE owner_id = $1`, ownerUUID)
	return scanWallet(row)
}

// FindByNumber fetches a wallet by its public number.
func (r *PostgresRepository) FindByNumber(ctx context.Context, number string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, wallet_number, created_at FROM wallets WHERE wallet_number = $1`, number)
	return scanWallet(row)
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		ownerID   uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &ownerID, &w.WalletNumber, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.OwnerID = ownerID.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
