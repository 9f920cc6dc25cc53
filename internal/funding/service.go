package funding

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/kolopay/kolopay/internal/gateway"
	"github.com/kolopay/kolopay/internal/ledger"
	"github.com/kolopay/kolopay/internal/money"
	"github.com/kolopay/kolopay/internal/notification"
	"github.com/kolopay/kolopay/internal/reference"
	"github.com/kolopay/kolopay/internal/wallet"
)

var (
	// ErrInvalidSignature occurs when the webhook signature does not match
	// the payload. The payload is untrusted until this check passes.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrAmountMismatch occurs when a correctly signed webhook reports an
	// amount that differs from the pending deposit. The deposit stays
	// pending so a correct redelivery can still complete it.
	ErrAmountMismatch = errors.New("webhook amount does not match pending deposit")
)

const (
	eventChargeSuccess = "charge.success"
	statusSuccess      = "success"
	referencePrefix    = "dep"
)

// Service orchestrates gateway deposits: it opens payment sessions and
// consumes the gateway's webhook, which is the only trusted signal of
// payment completion.
type Service struct {
	ledger   ledger.Ledger
	wallets  *wallet.Service
	gateway  gateway.Client
	secret   []byte
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds a deposit settlement service. The secret is the shared
// key the gateway signs webhook payloads with.
func NewService(ledgerBackend ledger.Ledger, wallets *wallet.Service, gatewayClient gateway.Client, secret string, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		ledger:   ledgerBackend,
		wallets:  wallets,
		gateway:  gatewayClient,
		secret:   []byte(secret),
		notifier: notifier,
		logger:   logger,
	}
}

// DepositIntent is the caller's handle for a newly initiated deposit.
type DepositIntent struct {
	Reference        string
	AuthorizationURL string
	Amount           decimal.Decimal
}

// InitiateDeposit records a pending deposit and opens a gateway payment
// session for it. The wallet is only credited later, by the webhook.
func (s *Service) InitiateDeposit(ctx context.Context, ownerID string, amount decimal.Decimal, email string) (DepositIntent, error) {
	if err := money.Validate(amount); err != nil {
		return DepositIntent{}, err
	}

	w, err := s.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		return DepositIntent{}, err
	}

	ref := reference.Transaction(referencePrefix)
	if _, err := s.ledger.CreatePending(ctx, w.ID, ledger.TypeDeposit, amount, ref, map[string]string{"email": email}); err != nil {
		return DepositIntent{}, err
	}

	session, err := s.gateway.InitializeTransaction(ctx, email, money.ToSubunit(amount), ref)
	if err != nil {
		// The pending row is kept; its reference was never handed to the
		// gateway, so it can never settle.
		s.logger.Error("gateway initialization failed", "reference", ref, "error", err)
		return DepositIntent{}, err
	}

	s.logger.Info("deposit initiated", "reference", ref, "wallet_id", w.ID)
	return DepositIntent{Reference: ref, AuthorizationURL: session.AuthorizationURL, Amount: amount}, nil
}

// webhookEnvelope is the subset of the gateway webhook payload the engine
// consumes.
type webhookEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		PaidAt    string `json:"paid_at"`
	} `json:"data"`
}

// WebhookResult reports whether a webhook delivery was accepted.
type WebhookResult struct {
	Accepted  bool
	Reference string
}

// HandleWebhook verifies and applies a gateway notification. The signature
// is checked over the exact raw bytes before the payload is parsed, because
// re-serialization is not guaranteed to be byte-identical to what the
// gateway signed. Redelivery of an already settled reference is a no-op.
func (s *Service) HandleWebhook(ctx context.Context, raw []byte, signature string) (WebhookResult, error) {
	if !s.verifySignature(raw, signature) {
		s.logger.Warn("webhook rejected: signature mismatch")
		return WebhookResult{}, ErrInvalidSignature
	}

	var payload webhookEnvelope
	if err := json.Unmarshal(raw, &payload); err != nil {
		return WebhookResult{}, fmt.Errorf("decode webhook payload: %w", err)
	}

	if payload.Event != eventChargeSuccess {
		s.logger.Info("webhook ignored", "event", payload.Event)
		return WebhookResult{Accepted: true}, nil
	}

	ref := payload.Data.Reference
	txn, err := s.ledger.FindByReference(ctx, ref)
	if err != nil {
		s.logger.Warn("webhook for unknown reference", "reference", ref)
		return WebhookResult{}, err
	}

	if txn.Status != ledger.StatusPending {
		s.logger.Info("webhook replay for settled reference", "reference", ref, "status", string(txn.Status))
		return WebhookResult{Accepted: true, Reference: ref}, nil
	}

	if payload.Data.Status != statusSuccess {
		if _, err := s.ledger.Settle(ctx, ref, ledger.StatusFailed); err != nil && !errors.Is(err, ledger.ErrAlreadySettled) {
			return WebhookResult{}, err
		}
		s.logger.Info("deposit failed at gateway", "reference", ref, "gateway_status", payload.Data.Status)
		return WebhookResult{Accepted: true, Reference: ref}, nil
	}

	if !money.FromSubunit(payload.Data.Amount).Equal(txn.Amount) {
		s.logger.Warn("webhook amount mismatch", "reference", ref, "webhook_kobo", payload.Data.Amount)
		return WebhookResult{}, ErrAmountMismatch
	}

	settled, err := s.ledger.Settle(ctx, ref, ledger.StatusSuccess)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadySettled) {
			// Lost a race against a concurrent delivery of the same webhook.
			return WebhookResult{Accepted: true, Reference: ref}, nil
		}
		return WebhookResult{}, err
	}

	s.logger.Info("deposit settled", "reference", ref, "wallet_id", settled.Transaction.WalletID)
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindDepositSettled,
			Destination: settled.Transaction.WalletID,
			Body:        fmt.Sprintf("Deposit of %s settled", settled.Transaction.Amount),
		})
	}
	return WebhookResult{Accepted: true, Reference: ref}, nil
}

func (s *Service) verifySignature(raw []byte, signature string) bool {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write(raw)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// DepositStatus is a read-only view of a deposit's settlement state.
type DepositStatus struct {
	Reference string
	Status    ledger.TransactionStatus
	Amount    decimal.Decimal
}

// GetDepositStatus reports a deposit's current state. It never mutates or
// credits: only the webhook path settles deposits.
func (s *Service) GetDepositStatus(ctx context.Context, ref string) (DepositStatus, error) {
	txn, err := s.ledger.FindByReference(ctx, ref)
	if err != nil {
		return DepositStatus{}, err
	}
	return DepositStatus{Reference: txn.Reference, Status: txn.Status, Amount: txn.Amount}, nil
}

// VerifyWithGateway polls the gateway for a reference's remote status. Used
// by the post-payment browser callback for UI display only.
func (s *Service) VerifyWithGateway(ctx context.Context, ref string) (gateway.VerifiedTransaction, error) {
	return s.gateway.VerifyTransaction(ctx, ref)
}
