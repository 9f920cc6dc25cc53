package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kolopay/kolopay/internal/ledger"
	"github.com/kolopay/kolopay/internal/money"
	"github.com/kolopay/kolopay/internal/notification"
	"github.com/kolopay/kolopay/internal/reference"
	"github.com/kolopay/kolopay/internal/wallet"
)

// ErrSelfTransfer indicates the sender addressed their own wallet number.
var ErrSelfTransfer = errors.New("cannot transfer to your own wallet")

const referencePrefix = "trf"

// Service moves funds between wallets through the ledger.
type Service struct {
	ledger   ledger.Ledger
	wallets  *wallet.Service
	notifier notification.Notifier
}

// NewService constructs a payment service.
func NewService(ledgerBackend ledger.Ledger, wallets *wallet.Service, notifier notification.Notifier) *Service {
	return &Service{ledger: ledgerBackend, wallets: wallets, notifier: notifier}
}

// TransferInput captures the data needed to move funds between wallets.
type TransferInput struct {
	SenderOwnerID         string
	RecipientWalletNumber string
	Amount                decimal.Decimal
}

// TransferOutcome describes the ledger outcome of a completed transfer.
type TransferOutcome struct {
	Reference     string
	SenderBalance decimal.Decimal
	CompletedAt   time.Time
}

// Transfer atomically debits the sender and credits the recipient, writing
// both transfer legs under one shared reference.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferOutcome, error) {
	if err := money.Validate(input.Amount); err != nil {
		return TransferOutcome{}, err
	}

	sender, err := s.wallets.GetByOwner(ctx, input.SenderOwnerID)
	if err != nil {
		return TransferOutcome{}, err
	}

	// Cheap early rejection; the ledger re-checks under the wallet lock in
	// case a concurrent debit lands in between.
	balance, err := s.ledger.Balance(ctx, sender.ID)
	if err != nil {
		return TransferOutcome{}, err
	}
	if balance.LessThan(input.Amount) {
		return TransferOutcome{}, ledger.ErrInsufficientFunds
	}

	recipient, err := s.wallets.GetByNumber(ctx, input.RecipientWalletNumber)
	if err != nil {
		return TransferOutcome{}, err
	}
	if recipient.ID == sender.ID {
		return TransferOutcome{}, ErrSelfTransfer
	}

	ref := reference.Transaction(referencePrefix)
	res, err := s.ledger.Transfer(ctx, sender.ID, recipient.ID, ref, input.Amount)
	if err != nil {
		return TransferOutcome{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: recipient.OwnerID,
			Body:        fmt.Sprintf("You received %s from wallet %s", input.Amount, sender.WalletNumber),
		})
	}

	return TransferOutcome{
		Reference:     res.Reference,
		SenderBalance: res.FromBalance,
		CompletedAt:   time.Now().UTC(),
	}, nil
}
