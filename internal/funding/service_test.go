package funding

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kolopay/kolopay/internal/gateway"
	"github.com/kolopay/kolopay/internal/ledger"
	"github.com/kolopay/kolopay/internal/logging"
	"github.com/kolopay/kolopay/internal/wallet"
)

const testSecret = "sk_test_webhook_secret"

func newTestService(t *testing.T) (*Service, *wallet.Service, ledger.Ledger) {
	t.Helper()
	ledgerBackend := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), ledgerBackend)
	svc := NewService(ledgerBackend, wallets, &gateway.Static{}, testSecret, nil, logging.Discard())
	return svc, wallets, ledgerBackend
}

func sign(t *testing.T, body []byte) string {
	t.Helper()
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func chargeSuccessBody(ref string, kobo int64) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"charge.success","data":{"status":"success","reference":"%s","amount":%d,"currency":"NGN"}}`,
		ref, kobo,
	))
}

func TestInitiateDepositCreatesPendingTransaction(t *testing.T) {
	svc, wallets, ledgerBackend := newTestService(t)
	ctx := context.Background()

	w, err := wallets.Create(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	intent, err := svc.InitiateDeposit(ctx, w.OwnerID, decimal.NewFromInt(2500), "ada@example.com")
	if err != nil {
		t.Fatalf("initiate deposit: %v", err)
	}
	if intent.AuthorizationURL == "" {
		t.Fatal("expected an authorization URL")
	}

	txn, err := ledgerBackend.FindByReference(ctx, intent.Reference)
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if txn.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want pending", txn.Status)
	}

	// Initiation never credits the wallet.
	balance, _ := ledgerBackend.Balance(ctx, w.ID)
	if !balance.IsZero() {
		t.Fatalf("balance = %s, want 0", balance)
	}
}

func TestHandleWebhookSettlesDeposit(t *testing.T) {
	svc, wallets, ledgerBackend := newTestService(t)
	ctx := context.Background()

	w, _ := wallets.Create(ctx, uuid.NewString())
	intent, err := svc.InitiateDeposit(ctx, w.OwnerID, decimal.NewFromInt(2500), "ada@example.com")
	if err != nil {
		t.Fatalf("initiate deposit: %v", err)
	}

	body := chargeSuccessBody(intent.Reference, 250000)
	res, err := svc.HandleWebhook(ctx, body, sign(t, body))
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if !res.Accepted {
		t.Fatal("expected webhook to be accepted")
	}

	balance, _ := ledgerBackend.Balance(ctx, w.ID)
	if !balance.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("balance = %s, want 2500", balance)
	}

	txn, _ := ledgerBackend.FindByReference(ctx, intent.Reference)
	if txn.Status != ledger.StatusSuccess {
		t.Fatalf("status = %s, want success", txn.Status)
	}
}

func TestHandleWebhookReplayCreditsOnce(t *testing.T) {
	svc, wallets, ledgerBackend := newTestService(t)
	ctx := context.Background()

	w, _ := wallets.Create(ctx, uuid.NewString())
	intent, _ := svc.InitiateDeposit(ctx, w.OwnerID, decimal.NewFromInt(1000), "ada@example.com")

	body := chargeSuccessBody(intent.Reference, 100000)
	for i := 0; i < 3; i++ {
		res, err := svc.HandleWebhook(ctx, body, sign(t, body))
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if !res.Accepted {
			t.Fatalf("delivery %d not accepted", i)
		}
	}

	balance, _ := ledgerBackend.Balance(ctx, w.ID)
	if !balance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance = %s, want exactly one credit of 1000", balance)
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc, wallets, ledgerBackend := newTestService(t)
	ctx := context.Background()

	w, _ := wallets.Create(ctx, uuid.NewString())
	intent, _ := svc.InitiateDeposit(ctx, w.OwnerID, decimal.NewFromInt(1000), "ada@example.com")

	body := chargeSuccessBody(intent.Reference, 100000)

	_, err := svc.HandleWebhook(ctx, body, "deadbeef")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}

	// Tampering after signing must also fail.
	tampered := chargeSuccessBody(intent.Reference, 999900)
	_, err = svc.HandleWebhook(ctx, tampered, sign(t, body))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered body err = %v, want ErrInvalidSignature", err)
	}

	txn, _ := ledgerBackend.FindByReference(ctx, intent.Reference)
	if txn.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want pending after rejected deliveries", txn.Status)
	}
	balance, _ := ledgerBackend.Balance(ctx, w.ID)
	if !balance.IsZero() {
		t.Fatalf("balance = %s, want 0", balance)
	}
}

func TestHandleWebhookIgnoresOtherEvents(t *testing.T) {
	svc, wallets, ledgerBackend := newTestService(t)
	ctx := context.Background()

	w, _ := wallets.Create(ctx, uuid.NewString())
	intent, _ := svc.InitiateDeposit(ctx, w.OwnerID, decimal.NewFromInt(1000), "ada@example.com")

	body := []byte(fmt.Sprintf(
		`{"event":"transfer.success","data":{"status":"success","reference":"%s","amount":100000}}`,
		intent.Reference,
	))
	res, err := svc.HandleWebhook(ctx, body, sign(t, body))
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if !res.Accepted {
		t.Fatal("unrelated events are acknowledged, not errored")
	}

	txn, _ := ledgerBackend.FindByReference(ctx, intent.Reference)
	if txn.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want pending", txn.Status)
	}
}

func TestHandleWebhookFailedCharge(t *testing.T) {
	svc, wallets, ledgerBackend := newTestService(t)
	ctx := context.Background()

	w, _ := wallets.Create(ctx, uuid.NewString())
	intent, _ := svc.InitiateDeposit(ctx, w.OwnerID, decimal.NewFromInt(1000), "ada@example.com")

	body := []byte(fmt.Sprintf(
		`{"event":"charge.success","data":{"status":"failed","reference":"%s","amount":100000}}`,
		intent.Reference,
	))
	res, err := svc.HandleWebhook(ctx, body, sign(t, body))
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if !res.Accepted {
		t.Fatal("expected webhook to be accepted")
	}

	txn, _ := ledgerBackend.FindByReference(ctx, intent.Reference)
	if txn.Status != ledger.StatusFailed {
		t.Fatalf("status = %s, want failed", txn.Status)
	}
	balance, _ := ledgerBackend.Balance(ctx, w.ID)
	if !balance.IsZero() {
		t.Fatalf("balance = %s, want 0", balance)
	}
}

func TestHandleWebhookAmountMismatch(t *testing.T) {
	svc, wallets, ledgerBackend := newTestService(t)
	ctx := context.Background()

	w, _ := wallets.Create(ctx, uuid.NewString())
	intent, _ := svc.InitiateDeposit(ctx, w.OwnerID, decimal.NewFromInt(1000), "ada@example.com")

	body := chargeSuccessBody(intent.Reference, 50000)
	_, err := svc.HandleWebhook(ctx, body, sign(t, body))
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("err = %v, want ErrAmountMismatch", err)
	}

	// The deposit stays pending so a correct redelivery can settle it.
	txn, _ := ledgerBackend.FindByReference(ctx, intent.Reference)
	if txn.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want pending", txn.Status)
	}

	correct := chargeSuccessBody(intent.Reference, 100000)
	if _, err := svc.HandleWebhook(ctx, correct, sign(t, correct)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	balance, _ := ledgerBackend.Balance(ctx, w.ID)
	if !balance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance = %s, want 1000", balance)
	}
}

func TestHandleWebhookUnknownReference(t *testing.T) {
	svc, _, _ := newTestService(t)

	body := chargeSuccessBody("dep_0_ffffffff", 100000)
	_, err := svc.HandleWebhook(context.Background(), body, sign(t, body))
	if !errors.Is(err, ledger.ErrTransactionNotFound) {
		t.Fatalf("err = %v, want ledger.ErrTransactionNotFound", err)
	}
}

func TestGetDepositStatusIsReadOnly(t *testing.T) {
	svc, wallets, ledgerBackend := newTestService(t)
	ctx := context.Background()

	w, _ := wallets.Create(ctx, uuid.NewString())
	intent, _ := svc.InitiateDeposit(ctx, w.OwnerID, decimal.NewFromInt(1000), "ada@example.com")

	status, err := svc.GetDepositStatus(ctx, intent.Reference)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want pending", status.Status)
	}

	balance, _ := ledgerBackend.Balance(ctx, w.ID)
	if !balance.IsZero() {
		t.Fatalf("status query credited the wallet: %s", balance)
	}
}
