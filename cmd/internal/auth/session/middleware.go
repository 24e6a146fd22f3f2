package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"authjwt/cmd/identity"
)

// Outcome is the middleware decision for one request.
type Outcome string

const (
	// OutcomeAnonymous: no access token (or refresh-only while RefreshWithoutAccess is off).
	OutcomeAnonymous Outcome = "anonymous"
	// OutcomeAuthenticated: valid access token for an allowed user; cookies untouched.
	OutcomeAuthenticated Outcome = "authenticated"
	// OutcomeRotated: access expired, refresh current; a new pair was attached.
	OutcomeRotated Outcome = "rotated"
	// OutcomeCleared: any failure; both cookies were expired and the request is anonymous.
	OutcomeCleared Outcome = "cleared"
	// OutcomeError: the user store or signer failed; the error handler rendered the response.
	OutcomeError Outcome = "error"
)

// UserLoader is the slice of identity.Store the middleware needs.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (identity.User, error)
}

// ErrorHandler renders infrastructure failures (store down, signing failure).
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Authenticator validates the token pair on every request and rotates it when due.
// It never rejects a request on its own: downstream handlers decide whether
// anonymous access is acceptable.
type Authenticator struct {
	log     *slog.Logger
	svc     *Service
	users   UserLoader
	metrics *Metrics
	onError ErrorHandler
	now     func() time.Time
	clocked bool

	// transport is svc's transport, re-clocked when WithClock is set.
	transport Transport

	refreshWithoutAccess bool
}

// AuthenticatorOption configures optional Authenticator dependencies.
type AuthenticatorOption func(*Authenticator)

// WithMetrics attaches outcome counters.
func WithMetrics(m *Metrics) AuthenticatorOption {
	return func(a *Authenticator) { a.metrics = m }
}

// WithErrorHandler overrides the default 500 renderer.
func WithErrorHandler(h ErrorHandler) AuthenticatorOption {
	return func(a *Authenticator) {
		if h != nil {
			a.onError = h
		}
	}
}

// WithClock overrides time.Now for token verification, issuance and cookie Max-Age.
func WithClock(now func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
			a.clocked = true
		}
	}
}

// WithRefreshWithoutAccess enables rotation for requests that carry only a refresh token.
func WithRefreshWithoutAccess(enabled bool) AuthenticatorOption {
	return func(a *Authenticator) { a.refreshWithoutAccess = enabled }
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(log *slog.Logger, svc *Service, users UserLoader, opts ...AuthenticatorOption) (*Authenticator, error) {
	if svc == nil || svc.tokens == nil {
		return nil, errors.New("session: nil token service")
	}
	if users == nil {
		return nil, errors.New("session: nil user loader")
	}
	if log == nil {
		log = slog.Default()
	}

	a := &Authenticator{
		log:   log,
		svc:   svc,
		users: users,
		now:   time.Now,
		onError: func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(a)
	}
	a.transport = svc.transport
	if a.clocked {
		a.transport = a.transport.WithClock(a.now)
	}
	return a, nil
}

// Middleware wraps next with token validation and rotation.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		access, refresh := a.transport.Read(r)

		userID, outcome, err := a.Authenticate(r.Context(), w, access, refresh)
		if err != nil {
			a.metrics.observe(OutcomeError)
			a.log.Error("auth.middleware.fail", "err", err, "path", r.URL.Path)
			a.onError(w, r, err)
			return
		}

		a.metrics.observe(outcome)
		if outcome == OutcomeRotated {
			a.log.Info("auth.middleware.rotated", "user_id", userID)
		} else {
			a.log.Debug("auth.middleware."+string(outcome), "user_id", userID)
		}

		if userID > 0 {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// Authenticate runs the state machine for one token pair.
// It returns the bound user id (0 when anonymous) and the outcome.
// A non-nil error means an infrastructure failure, not a bad token.
func (a *Authenticator) Authenticate(ctx context.Context, w http.ResponseWriter, access, refresh string) (int64, Outcome, error) {
	now := a.now()

	if access == "" {
		if refresh != "" && a.refreshWithoutAccess {
			return a.rotate(ctx, w, refresh, now)
		}
		return 0, OutcomeAnonymous, nil
	}

	claims, err := a.svc.tokens.VerifyAccess(access, now)
	switch {
	case err == nil:
		u, err := a.users.GetUserByID(ctx, claims.UserID)
		if err != nil {
			if identity.IsNotFound(err) {
				return a.fail(w)
			}
			return 0, "", err
		}
		if !u.Allowed {
			return a.fail(w)
		}
		return u.ID, OutcomeAuthenticated, nil

	case errors.Is(err, ErrTokenExpired):
		return a.rotate(ctx, w, refresh, now)

	default:
		// Tampered or malformed access token: do not consult the refresh token.
		return a.fail(w)
	}
}

func (a *Authenticator) rotate(ctx context.Context, w http.ResponseWriter, refresh string, now time.Time) (int64, Outcome, error) {
	if refresh == "" {
		return a.fail(w)
	}

	claims, err := a.svc.tokens.VerifyRefresh(refresh, now)
	if err != nil {
		return a.fail(w)
	}

	u, err := a.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			return a.fail(w)
		}
		return 0, "", err
	}
	if !u.Allowed {
		return a.fail(w)
	}
	if claims.Version == nil || *claims.Version != u.Version {
		return a.fail(w)
	}

	// The new refresh token embeds the version read above, not the one in the old token.
	p, err := a.svc.Issue(u.ID, u.Version, now)
	if err != nil {
		return 0, "", err
	}
	a.transport.Attach(w, p)
	return u.ID, OutcomeRotated, nil
}

func (a *Authenticator) fail(w http.ResponseWriter) (int64, Outcome, error) {
	a.transport.Clear(w)
	return 0, OutcomeCleared, nil
}

// RequireUser returns the bound user id or false when the request is anonymous.
func RequireUser(r *http.Request) (int64, bool) {
	if r == nil {
		return 0, false
	}
	return UserIDFrom(r.Context())
}
