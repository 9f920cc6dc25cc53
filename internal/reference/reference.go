package reference

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	walletNumberMin  = 1_000_000_000_000
	walletNumberSpan = 9_000_000_000_000
)

// WalletNumber returns a random 13-digit wallet number. Uniqueness is
// enforced by the wallet store, which retries on collision.
func WalletNumber() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	n := int64(binary.BigEndian.Uint64(buf[:]) % walletNumberSpan)
	return strconv.FormatInt(walletNumberMin+n, 10)
}

// Transaction returns a transaction reference of the form
// prefix_<unix-millis>_<random hex>. The reference is the idempotency key
// for all downstream settlement.
func Transaction(prefix string) string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(buf[:]))
}
