package auth

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken returns the ledger key for a bearer token value.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
