package zento

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// TokenBytes is the amount of random data behind a bearer token (256 bits)
const TokenBytes = 32

// IssueToken generates a new bearer token. The plaintext goes to the client,
// the hash is what gets stored.
func IssueToken() (plaintext, hash string, err error) {
	buf := make([]byte, TokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	plaintext = base64.RawURLEncoding.EncodeToString(buf)
	return plaintext, HashToken(plaintext), nil
}

// HashToken returns the lookup hash for a plaintext token. Blank input
// means "no token" and hashes to an empty string.
func HashToken(plaintext string) string {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
