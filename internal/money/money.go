package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount occurs when a caller submits a non-positive amount or one
// with more than two decimal places.
var ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places")

var subunitFactor = decimal.NewFromInt(100)

// Validate rejects amounts that cannot be represented as a positive
// two-decimal monetary value.
func Validate(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// ToSubunit converts a major-unit amount to the gateway's integer minor unit
// (naira to kobo).
func ToSubunit(amount decimal.Decimal) int64 {
	return amount.Mul(subunitFactor).IntPart()
}

// FromSubunit converts a gateway minor-unit amount back to major units.
func FromSubunit(subunits int64) decimal.Decimal {
	return decimal.NewFromInt(subunits).Div(subunitFactor)
}
