package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"authjwt/cmd/identity"
	"authjwt/cmd/internal/auth/session"
	"authjwt/cmd/security/password"
	"authjwt/cmd/security/token"

	"github.com/go-chi/chi/v5"
)

// AdminTokenHeader carries the shared secret for /ban-user/{id} when one is configured.
const AdminTokenHeader = "X-Admin-Token"

// Handler wires HTTP auth endpoints to the user store and session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	hasher   *password.Hasher
	sessions *session.Service

	now func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithNow overrides the handler clock.
func WithNow(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, hasher *password.Hasher, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil {
		return nil, errors.New("auth: nil user store")
	}
	if hasher == nil {
		return nil, errors.New("auth: nil password hasher")
	}
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto r. The session middleware must already be
// mounted on r so that /logout-devices and /get-user see the bound user.
func (h *Handler) Register(r chi.Router) {
	if h == nil || r == nil {
		return
	}
	r.Post("/signup", h.handleSignup)
	r.Post("/signin", h.handleSignin)
	r.Post("/logout-devices", h.handleLogoutDevices)
	r.Post("/ban-user/{id}", h.handleBanUser)
	r.Get("/get-user", h.handleGetUser)
}

// RenderError is a session.ErrorHandler that renders through the API error taxonomy.
func (h *Handler) RenderError(w http.ResponseWriter, _ *http.Request, err error) {
	writeAPIError(w, h.log, err)
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	req, err := h.readCredentials(w, r)
	if err != nil {
		writeAPIError(w, h.log, err)
		return
	}
	if err := h.hasher.Validate(req.Password); err != nil {
		writeAPIError(w, h.log, ValidationError{Field: "password", Msg: passwordMessage(err)})
		return
	}

	ctx := r.Context()
	hash, err := h.hasher.Hash(ctx, req.Password)
	if err != nil {
		writeAPIError(w, h.log, err)
		return
	}

	now := h.now()
	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Email:        req.Email,
		PasswordHash: hash,
		Now:          now,
	})
	if err != nil {
		if identity.IsConflict(err) {
			h.log.Info("auth.signup.conflict", "identifier", emailFingerprint(req.Email))
		}
		writeAPIError(w, h.log, err)
		return
	}

	if _, err := h.sessions.IssueAndAttach(w, u.ID, u.Version, now); err != nil {
		writeAPIError(w, h.log, err)
		return
	}

	h.auditSignup(r, u.ID)
	writeJSON(w, http.StatusCreated, successResponse{Success: true})
}

func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	req, err := h.readCredentials(w, r)
	if err != nil {
		writeAPIError(w, h.log, err)
		return
	}

	ctx := r.Context()
	u, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if !identity.IsNotFound(err) {
			writeAPIError(w, h.log, err)
			return
		}
		// Keep the unknown-email path as slow as a real compare.
		h.hasher.VerifyDummy(ctx, req.Password)
		h.auditSigninFailed(r, nil, req.Email, "not_found")
		writeAPIError(w, h.log, errInvalidCredential)
		return
	}

	ok, err := h.hasher.Verify(ctx, u.PasswordHash, req.Password)
	if err != nil && !errors.Is(err, password.ErrInvalidHash) {
		writeAPIError(w, h.log, err)
		return
	}
	if !ok {
		h.auditSigninFailed(r, &u.ID, req.Email, "bad_password")
		writeAPIError(w, h.log, errInvalidCredential)
		return
	}
	if !u.Allowed {
		h.auditSigninFailed(r, &u.ID, req.Email, "banned")
		writeAPIError(w, h.log, errUserBanned)
		return
	}

	pair, err := h.sessions.IssueAndAttach(w, u.ID, u.Version, h.now())
	if err != nil {
		writeAPIError(w, h.log, err)
		return
	}

	h.auditSigninSuccess(r, u.ID)
	writeJSON(w, http.StatusOK, signinResponse{
		Success:      true,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) handleLogoutDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.RequireUser(r)
	if !ok {
		writeAPIError(w, h.log, errNotAuthenticated)
		return
	}

	version, err := h.users.IncrementVersion(r.Context(), userID)
	if err != nil {
		if identity.IsNotFound(err) {
			// Deleted between middleware and handler.
			h.sessions.Clear(w)
			writeAPIError(w, h.log, errNotAuthenticated)
			return
		}
		writeAPIError(w, h.log, err)
		return
	}

	h.sessions.Clear(w)
	h.auditLogoutAll(r, userID, version)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) handleBanUser(w http.ResponseWriter, r *http.Request) {
	if h.cfg.AdminToken != "" && !token.SecretEqual(r.Header.Get(AdminTokenHeader), h.cfg.AdminToken) {
		writeAPIError(w, h.log, errBadAdminToken)
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || id <= 0 {
		writeAPIError(w, h.log, ValidationError{Field: "id", Msg: "id must be a positive integer"})
		return
	}

	version, err := h.users.BanUser(r.Context(), id)
	if err != nil {
		writeAPIError(w, h.log, err)
		return
	}

	h.auditBan(r, id, version)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.RequireUser(r)
	if !ok {
		writeAPIError(w, h.log, errNotAuthenticated)
		return
	}

	u, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		writeAPIError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, getUserResponse{
		Success: true,
		User:    toUserResponse(u),
	})
}

// ---- helpers ----

func (h *Handler) readCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, ValidationError{Msg: "request body too large"}
		}
		return req, ValidationError{Msg: "invalid request body"}
	}

	req.Email = identity.NormalizeEmail(req.Email)
	if !validEmail(req.Email) {
		return req, ValidationError{Field: "email", Msg: "email must be a valid address"}
	}
	if req.Password == "" {
		return req, ValidationError{Field: "password", Msg: "password is required"}
	}
	return req, nil
}

func passwordMessage(err error) string {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return "password too short"
	case errors.Is(err, password.ErrPasswordTooLong):
		return "password too long"
	case errors.Is(err, password.ErrWeakPassword):
		return "password too weak"
	default:
		return "invalid password"
	}
}
