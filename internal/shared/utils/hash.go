package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashPassword computes the credential hash: SHA-256 over salt followed by
// the password, hex-encoded. The layout is part of the persisted credential
// record and the backup format, so it must stay stable.
func HashPassword(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

// NewSalt generates a random 16-byte salt, hex-encoded.
func NewSalt() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// If crypto/rand fails we must not fall back to weak randomness.
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// Checksum computes the SHA-256 hex digest of a byte payload. Used for the
// backup envelope.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
