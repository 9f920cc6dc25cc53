package wallet

import "time"

// Wallet is an owner's stored value account. Each owner holds exactly one
// wallet, addressable by a public 13-digit number. The balance itself is
// owned by the ledger.
type Wallet struct {
	ID           string
	OwnerID      string
	WalletNumber string
	CreatedAt    time.Time
}
