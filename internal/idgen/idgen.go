// Package idgen provides cryptographically random ID generation.
//
// Every entity gets a typed prefix so an ID is recognizable on its own:
// "ord_" orders, "bid_" bids, "rev_" reviews, "blk_" block-history
// entries, "evt_" webhook events, "wh_" webhook subscriptions.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// WithPrefix generates a random ID with a type prefix, e.g. WithPrefix("ord_").
// Result is prefix + 24 hex chars (12 random bytes).
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// Hex generates a random hex string of the given byte length. Used for
// webhook signing secrets.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
