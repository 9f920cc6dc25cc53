package gateway

import "context"

// Static simulates a gateway that accepts every transaction. Useful for unit
// tests and dev mode without gateway credentials.
type Static struct {
	// VerifyStatus is returned by VerifyTransaction; defaults to "success".
	VerifyStatus string
}

// InitializeTransaction approves the session with a synthetic checkout URL.
func (s Static) InitializeTransaction(_ context.Context, _ string, _ int64, reference string) (InitializedTransaction, error) {
	return InitializedTransaction{
		AuthorizationURL: "https://checkout.paystack.test/" + reference,
		AccessCode:       "access_" + reference,
		Reference:        reference,
	}, nil
}

// VerifyTransaction reports the configured status for any reference.
func (s Static) VerifyTransaction(_ context.Context, reference string) (VerifiedTransaction, error) {
	status := s.VerifyStatus
	if status == "" {
		status = "success"
	}
	return VerifiedTransaction{Reference: reference, Status: status, Currency: "NGN"}, nil
}
