package session

import "errors"

var (
	// ErrTokenExpired is returned when a token is well-formed and correctly signed
	// but past its expiry. The middleware treats it as the signal to try the refresh token.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid is returned for any other verification failure:
	// bad signature, wrong algorithm, wrong issuer, malformed claims, wrong token type.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
