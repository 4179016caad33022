// Package apikey handles generation, hashing, and verification of agent API
// keys. Keys are bcrypt-hashed for storage; a short sha256 fingerprint is
// stored alongside so the owning agent can be found with an index lookup
// before the single bcrypt comparison.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	Prefix    = "mf_"
	keyBytes  = 32
	hashCost  = 10
	fpHexLen  = 16
	codeBytes = 4
)

// Generate returns a new prefixed API key. The raw key is only ever shown
// once, in the registration response.
func Generate() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return Prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the bcrypt hash of the key for storage.
func Hash(apiKey string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(apiKey), hashCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether apiKey matches the stored bcrypt hash.
func Verify(apiKey, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey)) == nil
}

// Fingerprint returns a short, non-secret lookup key for an API key.
func Fingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])[:fpHexLen]
}

// GenerateVerificationCode returns the one-time code used to claim an agent.
func GenerateVerificationCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// ExtractFromHeader pulls an API key out of an Authorization header.
// Returns "" when the header is missing, malformed, or carries a non-key
// bearer token (expert JWTs lack the key prefix).
func ExtractFromHeader(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	if !strings.HasPrefix(parts[1], Prefix) {
		return ""
	}
	return parts[1]
}
