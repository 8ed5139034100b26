package utils // helpers for token material: random secrets and salted hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// RandomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data. Used for verification tokens and
// refresh token salts.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashWithSalt returns the hex SHA-256 digest of salt+value. Every stored
// refresh token gets its own salt, which keeps the table resistant to
// precomputed-hash lookups at the cost of a per-row comparison during
// validation.
func HashWithSalt(salt, value string) string {
	sum := sha256.Sum256([]byte(salt + value))
	return hex.EncodeToString(sum[:])
}
