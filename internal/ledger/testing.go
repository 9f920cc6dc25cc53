package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that seeds a wallet balance when using the
// in-memory ledger.
func SeedBalance(l Ledger, walletID string, amount decimal.Decimal) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[walletID] = amount
	}
}
