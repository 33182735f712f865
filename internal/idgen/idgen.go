// Package idgen provides random ID generation for transactions and events.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// TransactionToken generates an 8-character uppercase token for transactions
// whose callers did not supply an ID. Derived from a UUID so tokens stay
// unique enough among live records without coordination.
func TransactionToken() string {
	id := uuid.New().String()
	return strings.ToUpper(id[:8])
}

// WithPrefix generates a random ID with a prefix (e.g. "ana_", "evt_").
// Result is prefix + 24 hex chars (12 random bytes).
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// Hex generates a random hex string of the given byte length.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
