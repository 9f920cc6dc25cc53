package funding

import "github.com/shopspring/decimal"

// DepositRequest captures user-provided data to fund a wallet via the
// gateway.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// DepositResponse is the API response for an initiated deposit.
type DepositResponse struct {
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url"`
	Amount           decimal.Decimal `json:"amount"`
}

// DepositStatusResponse reports the settlement state of a deposit.
type DepositStatusResponse struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

// WebhookResponse acknowledges a webhook delivery.
type WebhookResponse struct {
	Accepted bool `json:"accepted"`
}
