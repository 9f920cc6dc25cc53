package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrUnavailable indicates the payment gateway could not be reached or
// returned an unusable response. Callers surface it without retrying.
var ErrUnavailable = errors.New("payment gateway unavailable")

// InitializedTransaction is the gateway's handle for a new payment session.
type InitializedTransaction struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifiedTransaction reports the gateway-side state of a transaction. It is
// used for out-of-band UI polling only and never credits funds.
type VerifiedTransaction struct {
	Reference  string
	Status     string
	AmountKobo int64
	Currency   string
	PaidAt     string
}

// Client connects to the external payment gateway.
type Client interface {
	InitializeTransaction(ctx context.Context, email string, amountKobo int64, reference string) (InitializedTransaction, error)
	VerifyTransaction(ctx context.Context, reference string) (VerifiedTransaction, error)
}

const defaultBaseURL = "https://api.paystack.co"

// Paystack is an HTTP client for the Paystack transaction API.
type Paystack struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	logger     *slog.Logger
}

// NewPaystack builds a gateway client. An empty baseURL selects the
// production API host.
func NewPaystack(secretKey, baseURL string, logger *slog.Logger) *Paystack {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Paystack{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		secretKey:  secretKey,
		logger:     logger,
	}
}

type initializeRequest struct {
	Email     string `json:"email"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// InitializeTransaction opens a remote payment session and returns the URL
// the payer should be redirected to. Amount is in the gateway's minor unit.
func (p *Paystack) InitializeTransaction(ctx context.Context, email string, amountKobo int64, reference string) (InitializedTransaction, error) {
	payload, err := json.Marshal(initializeRequest{Email: email, Amount: amountKobo, Reference: reference})
	if err != nil {
		return InitializedTransaction{}, err
	}

	var decoded initializeResponse
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", payload, &decoded); err != nil {
		return InitializedTransaction{}, err
	}
	if !decoded.Status {
		return InitializedTransaction{}, fmt.Errorf("%w: %s", ErrUnavailable, decoded.Message)
	}

	p.logger.Info("gateway transaction initialized", "reference", reference)
	return InitializedTransaction{
		AuthorizationURL: decoded.Data.AuthorizationURL,
		AccessCode:       decoded.Data.AccessCode,
		Reference:        decoded.Data.Reference,
	}, nil
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		PaidAt    string `json:"paid_at"`
	} `json:"data"`
}

// VerifyTransaction fetches the gateway-side status of a reference.
func (p *Paystack) VerifyTransaction(ctx context.Context, reference string) (VerifiedTransaction, error) {
	var decoded verifyResponse
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &decoded); err != nil {
		return VerifiedTransaction{}, err
	}
	if !decoded.Status {
		return VerifiedTransaction{}, fmt.Errorf("%w: %s", ErrUnavailable, decoded.Message)
	}

	return VerifiedTransaction{
		Reference:  decoded.Data.Reference,
		Status:     decoded.Data.Status,
		AmountKobo: decoded.Data.Amount,
		Currency:   decoded.Data.Currency,
		PaidAt:     decoded.Data.PaidAt,
	}, nil
}

func (p *Paystack) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error("gateway request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error("gateway returned error status", "method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
