package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// SigningKeyEnv is the env var name for the JWT signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SigningKeyEnv = "AUTH_JWT_KEY"

	// MinSigningKeyBytes is the minimum accepted key size for HMAC-SHA256.
	MinSigningKeyBytes = 32
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SigningKeyFromEnv returns the configured signing key bytes (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrSigningKeyMissing.
// If too short -> ErrSigningKeyTooShort.
func SigningKeyFromEnv(minBytes int) ([]byte, error) {
	return ParseSigningKey(os.Getenv(SigningKeyEnv), minBytes)
}

// ParseSigningKey applies the same rules as SigningKeyFromEnv to a raw value.
func ParseSigningKey(raw string, minBytes int) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrSigningKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrSigningKeyTooShort
	}
	return b, nil
}

// SecretEqual compares two secrets in constant time.
// Both sides are hashed first so the comparison does not leak the expected length.
func SecretEqual(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	a := sha256.Sum256([]byte(got))
	b := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
