// Package session implements the two-token authentication protocol.
//
// Access tokens are short-lived HS256 JWTs carrying only the user id.
// Refresh tokens are long-lived HS256 JWTs carrying the user id and the user's
// token version at issue time. Bumping the stored version revokes every refresh
// token issued before it; there is no server-side session table.
//
// Both tokens travel as HttpOnly cookies (see Transport). Authenticator is the
// per-request state machine that validates the pair and rotates it when the
// access token has expired but the refresh token is still current.
package session
