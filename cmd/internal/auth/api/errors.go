package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"authjwt/cmd/identity"
	"authjwt/cmd/internal/auth/session"
)

var (
	// ErrUnauthorized is the kind behind every 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation is the kind behind every 400 caused by malformed input.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports malformed client input. Msg is safe to show to clients.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return "validation: " + e.Field + ": " + e.Msg
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// UnauthorizedError reports a missing, rejected or banned principal.
// Code is the stable machine-readable reason.
type UnauthorizedError struct {
	Code string
	Msg  string
}

func (e UnauthorizedError) Error() string { return "unauthorized: " + e.Msg }

func (e UnauthorizedError) Unwrap() error { return ErrUnauthorized }

var (
	errNotAuthenticated  = UnauthorizedError{Code: "unauthorized", Msg: "authentication required"}
	errInvalidCredential = UnauthorizedError{Code: "invalid_credentials", Msg: "invalid credentials"}
	errUserBanned        = UnauthorizedError{Code: "user_banned", Msg: "user unauthorized"}
	errBadAdminToken     = UnauthorizedError{Code: "unauthorized", Msg: "admin token required"}
)

// writeAPIError maps the error taxonomy to a status code and a stable body.
// Anything unclassified is a 500 whose details stay in the log.
func writeAPIError(w http.ResponseWriter, log *slog.Logger, err error) {
	var (
		ve ValidationError
		ue UnauthorizedError
	)

	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_error", ve.Msg)
	case identity.IsConflict(err):
		writeError(w, http.StatusBadRequest, "email_taken", "user already exists")
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "validation_error", "invalid input")
	case identity.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	case errors.As(err, &ue):
		writeError(w, http.StatusUnauthorized, ue.Code, ue.Msg)
	case errors.Is(err, session.ErrTokenExpired), errors.Is(err, session.ErrTokenInvalid):
		// Token errors are consumed by the middleware; reaching here is still a 401.
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
	default:
		if log != nil {
			log.Error("auth.internal_error", "err", err)
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
