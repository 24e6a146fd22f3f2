package app

import (
	"errors"

	"authjwt/cmd/security/token"
)

// ValidateSecurityConfig fails startup when the JWT signing key is absent or weak.
// There is no fallback key.
func ValidateSecurityConfig() error {
	if _, err := token.SigningKeyFromEnv(token.MinSigningKeyBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrSigningKeyMissing):
			return errors.New("security policy: " + token.SigningKeyEnv + " is missing")
		case errors.Is(err, token.ErrSigningKeyTooShort):
			return errors.New("security policy: " + token.SigningKeyEnv + " is too short (min 32 bytes)")
		default:
			return err
		}
	}
	return nil
}
