package api

import (
	"log/slog"
	"net/http"
	"strings"

	"authjwt/cmd/security/token"

	"github.com/go-chi/chi/v5/middleware"
)

// Audit events are structured log records named after the action, tagged audit=true.
// Email identifiers are logged as a short SHA-256 prefix, never in clear.

func (h *Handler) auditSignup(r *http.Request, userID int64) {
	h.audit(r, "auth.signup.success", &userID, nil)
}

func (h *Handler) auditSigninFailed(r *http.Request, userID *int64, email, reason string) {
	h.audit(r, "auth.signin.failed", userID, map[string]any{
		"identifier": emailFingerprint(email),
		"reason":     reason,
	})
}

func (h *Handler) auditSigninSuccess(r *http.Request, userID int64) {
	h.audit(r, "auth.signin.success", &userID, nil)
}

func (h *Handler) auditLogoutAll(r *http.Request, userID int64, version int64) {
	h.audit(r, "auth.logout_all", &userID, map[string]any{"version": version})
}

func (h *Handler) auditBan(r *http.Request, userID int64, version int64) {
	h.audit(r, "auth.ban", &userID, map[string]any{"version": version})
}

func (h *Handler) audit(r *http.Request, action string, userID *int64, meta map[string]any) {
	if h == nil || h.log == nil || r == nil {
		return
	}

	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	attrs := []slog.Attr{
		slog.Bool("audit", true),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_agent", trimOrEmpty(r.UserAgent())),
	}
	if userID != nil {
		attrs = append(attrs, slog.Int64("user_id", *userID))
	}
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		attrs = append(attrs, slog.String("ip", ip.String()))
	}
	for k, v := range meta {
		attrs = append(attrs, slog.Any(k, v))
	}

	h.log.LogAttrs(r.Context(), slog.LevelInfo, action, attrs...)
}

func emailFingerprint(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	return token.HashSHA256Hex(email)[:16]
}

func trimOrEmpty(s string) string {
	return strings.TrimSpace(s)
}

