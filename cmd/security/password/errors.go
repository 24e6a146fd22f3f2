package password

import "errors"

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")

	// ErrInvalidHash means a stored value is not <key_hex>.<salt_hex> within bounds.
	ErrInvalidHash = errors.New("invalid password hash")

	// ErrInvalidParams means the scrypt cost parameters cannot produce a hash.
	ErrInvalidParams = errors.New("invalid scrypt parameters")
)
