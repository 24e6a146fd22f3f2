// Package identity implements the user record store behind authentication.
//
// It owns the User entity (credentials hash, allowed flag, token version),
// the Store boundary used by HTTP and middleware layers, and three backends:
// in-memory (dev/test), PostgreSQL (pgx) and SQLite.
//
// The token version is the only revocation mechanism: every write that bumps it is a
// single atomic statement so concurrent bans and logouts cannot lose updates.
package identity
