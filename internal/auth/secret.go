package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const (
	// apiKeyPrefix makes leaked keys findable by secret scanners.
	apiKeyPrefix = "sentra_"
	resetPrefix  = ""

	secretBytes = 32
)

// newSecret mints a random credential. The raw value is shown to the caller
// exactly once; only the hash is ever stored.
func newSecret(prefix string) (raw, hash string, err error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = prefix + hex.EncodeToString(buf)
	return raw, hashSecret(raw), nil
}

// hashSecret derives the stored lookup hash for a raw credential. SHA-256 is
// enough here: the input is high-entropy random, not a human password.
func hashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
