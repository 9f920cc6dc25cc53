package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidate(t *testing.T) {
	if err := Validate(decimal.NewFromInt(5000)); err != nil {
		t.Fatalf("expected 5000 to be valid: %v", err)
	}
	if err := Validate(decimal.RequireFromString("12.34")); err != nil {
		t.Fatalf("expected 12.34 to be valid: %v", err)
	}
	if err := Validate(decimal.Zero); err != ErrInvalidAmount {
		t.Fatalf("expected zero to be rejected, got %v", err)
	}
	if err := Validate(decimal.NewFromInt(-10)); err != ErrInvalidAmount {
		t.Fatalf("expected negative to be rejected, got %v", err)
	}
	if err := Validate(decimal.RequireFromString("1.005")); err != ErrInvalidAmount {
		t.Fatalf("expected sub-kobo precision to be rejected, got %v", err)
	}
}

func TestSubunitConversion(t *testing.T) {
	if got := ToSubunit(decimal.NewFromInt(5000)); got != 500_000 {
		t.Fatalf("expected 500000 kobo, got %d", got)
	}
	if got := ToSubunit(decimal.RequireFromString("12.34")); got != 1_234 {
		t.Fatalf("expected 1234 kobo, got %d", got)
	}
	if got := FromSubunit(500_000); !got.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected 5000 naira, got %s", got)
	}
}
