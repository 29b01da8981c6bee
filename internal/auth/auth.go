// Package auth validates API keys against configured SHA-256 hashes.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Authenticator validates API keys. Only hashes are held in memory.
type Authenticator struct {
	hashes [][]byte
}

// NewAuthenticator creates an authenticator accepting any key whose
// SHA-256 hex digest is in keyHashes. It returns nil when keyHashes has no
// usable entries, which disables authentication.
func NewAuthenticator(keyHashes []string) *Authenticator {
	a := &Authenticator{}
	for _, h := range keyHashes {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		a.hashes = append(a.hashes, []byte(h))
	}
	if len(a.hashes) == 0 {
		return nil
	}
	return a
}

// ValidateAPIKey reports an error unless apiKey matches a configured hash.
func (a *Authenticator) ValidateAPIKey(apiKey string) error {
	keyHash := []byte(HashAPIKey(apiKey))

	// Compare against every hash so timing does not depend on position.
	match := 0
	for _, h := range a.hashes {
		match |= subtle.ConstantTimeCompare(keyHash, h)
	}
	if match != 1 {
		return fmt.Errorf("invalid API key")
	}
	return nil
}

// ExtractAPIKey extracts the API key from the Authorization header
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
