package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kolopay/kolopay/internal/ledger"
	"github.com/kolopay/kolopay/internal/reference"
)

const maxNumberAttempts = 5

// Service exposes wallet operations backed by the ledger.
type Service struct {
	repo     Repository
	ledger   ledger.Ledger
	numberFn func() string
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledgerBackend ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: ledgerBackend, numberFn: reference.WalletNumber}
}

// Create provisions the owner's wallet with a zero balance, retrying wallet
// number generation on collision. Each owner holds at most one wallet.
func (s *Service) Create(ctx context.Context, ownerID string) (Wallet, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return Wallet{}, fmt.Errorf("invalid owner id: %w", err)
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		w := Wallet{
			ID:           uuid.NewString(),
			OwnerID:      ownerID,
			WalletNumber: s.numberFn(),
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.repo.Create(ctx, w); err != nil {
			if errors.Is(err, ErrNumberTaken) {
				continue
			}
			return Wallet{}, err
		}
		if err := s.ledger.Register(ctx, w.ID); err != nil {
			return Wallet{}, err
		}
		return w, nil
	}
	return Wallet{}, fmt.Errorf("allocate wallet number after %d attempts: %w", maxNumberAttempts, ErrNumberTaken)
}

// GetByOwner retrieves the owner's wallet.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return s.repo.FindByOwner(ctx, ownerID)
}

// GetByNumber retrieves a wallet by its public 13-digit number.
func (s *Service) GetByNumber(ctx context.Context, number string) (Wallet, error) {
	return s.repo.FindByNumber(ctx, number)
}

// Balance returns the owner's current ledger balance.
func (s *Service) Balance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	w, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.ledger.Balance(ctx, w.ID)
}

// Transactions returns a filtered, paginated history for the owner's wallet.
func (s *Service) Transactions(ctx context.Context, ownerID string, filter ledger.Filter, page ledger.Page) ([]ledger.Transaction, int, error) {
	w, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}
	return s.ledger.ListByWallet(ctx, w.ID, filter, page)
}
