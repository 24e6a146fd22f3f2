package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// hashSeparator splits the derived key from the salt in the stored form.
const hashSeparator = "."

// Hash hashes a password using scrypt and returns the stored form.
// Format:
// <key_hex>.<salt_hex>
func (c Config) Hash(password string) (string, error) {
	if err := c.Params.check(); err != nil {
		return "", err
	}
	if err := c.Validate(password); err != nil {
		return "", err
	}

	saltLen := c.Params.SaltLength
	if saltLen < 8 {
		saltLen = 8
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	// The hex salt text is the scrypt salt input, so the stored form is self-describing.
	key, err := scrypt.Key([]byte(password), []byte(saltHex), c.Params.N, c.Params.R, c.Params.P, c.Params.KeyLength)
	if err != nil {
		return "", fmt.Errorf("scrypt: %w", err)
	}

	return hex.EncodeToString(key) + hashSeparator + saltHex, nil
}

func (p ScryptParams) check() error {
	if !isPowerOfTwo(p.N) || p.R <= 0 || p.P <= 0 || p.KeyLength < 16 || p.KeyLength > 128 {
		return ErrInvalidParams
	}
	// scrypt rejects r*p >= 2^30.
	if uint64(p.R)*uint64(p.P) >= 1<<30 {
		return ErrInvalidParams
	}
	return nil
}

// Verify checks whether password matches the given stored hash.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed hashes.
func (c Config) Verify(stored, password string) (bool, error) {
	expected, saltHex, err := decode(stored)
	if err != nil {
		return false, err
	}

	key, err := scrypt.Key([]byte(password), []byte(saltHex), c.Params.N, c.Params.R, c.Params.P, len(expected))
	if err != nil {
		return false, ErrInvalidHash
	}

	if subtle.ConstantTimeCompare(key, expected) == 1 {
		return true, nil
	}
	return false, nil
}

// decode splits and validates the stored form.
// Stored values are untrusted input: key length is bounded so a forged row cannot
// request an arbitrarily large derivation.
func decode(stored string) ([]byte, string, error) {
	keyHex, saltHex, ok := strings.Cut(stored, hashSeparator)
	if !ok || keyHex == "" || saltHex == "" || strings.Contains(saltHex, hashSeparator) {
		return nil, "", ErrInvalidHash
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) < 16 || len(key) > 128 {
		return nil, "", ErrInvalidHash
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) < 8 || len(salt) > 64 {
		return nil, "", ErrInvalidHash
	}

	return key, saltHex, nil
}
