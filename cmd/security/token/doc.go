// Package token holds secret-material primitives shared by the auth layers.
//
// It is the single source of truth for how the JWT signing key is read from the
// environment and how operator-supplied secrets are compared.
//
// Environment:
// - AUTH_JWT_KEY: HMAC-SHA256 signing key for access and refresh tokens (required).
// - AUTH_ADMIN_TOKEN: optional shared secret guarding administrative routes.
//
// Policy:
//   - Callers MUST enforce a minimum key size (>= 32 bytes) at startup and fail fast
//     when the key is missing.
package token
