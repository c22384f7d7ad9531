package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyPrefix marks keys issued by GenerateAPIKey.
const APIKeyPrefix = "hk_"

// GenerateAPIKey returns a new random key and its bcrypt hash. Only the hash
// belongs in config; the plain key is shown once.
func GenerateAPIKey() (plain, hash string, err error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate key: %w", err)
	}
	plain = APIKeyPrefix + hex.EncodeToString(keyBytes)

	h, err := HashAPIKey(plain)
	if err != nil {
		return "", "", err
	}
	return plain, h, nil
}

// HashAPIKey bcrypt-hashes an existing key.
func HashAPIKey(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("api key must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hash), nil
}

// isBcryptHash reports whether s looks like a bcrypt hash ($2a$, $2b$ or $2y$).
func isBcryptHash(s string) bool {
	return len(s) == 60 && strings.HasPrefix(s, "$2")
}

// keyMatches compares a presented key against the configured plain key or
// bcrypt hash.
func keyMatches(presented, configured string) bool {
	if isBcryptHash(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}
