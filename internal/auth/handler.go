package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/strata-cms/strata/internal/audit"
	"github.com/strata-cms/strata/internal/server"
)

// The refresh token travels only as an httpOnly cookie scoped to the auth
// routes, so the browser never exposes it to scripts and never sends it
// with ordinary API calls.
const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/admin/api/auth"
	refreshCookieAge  = int((7 * 24 * time.Hour) / time.Second)
)

// Handler serves the login, refresh, logout, and identity endpoints.
type Handler struct {
	service *Service
	audits  *audit.Service
	devMode bool
}

// NewHandler builds the auth Handler. In dev mode the refresh cookie is
// sent without the Secure flag so plain-HTTP localhost works. The audit
// service may be nil.
func NewHandler(service *Service, audits *audit.Service, devMode bool) *Handler {
	return &Handler{service: service, audits: audits, devMode: devMode}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /admin/api/auth/login: the access token comes back in
// the body, the refresh token as a cookie. Failed attempts are audited
// with the attempted email.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := server.DecodeJSON(r, &creds); err != nil {
		server.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body", nil)
		return
	}
	if creds.Email == "" || creds.Password == "" {
		server.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "email and password are required", nil)
		return
	}

	adminID, accessToken, refreshToken, err := h.service.Login(r.Context(), creds.Email, creds.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		h.logAudit(r.Context(), audit.Event{
			Action:  "admin.login.failure",
			Payload: map[string]any{"email": creds.Email},
		})
		server.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid email or password", nil)
		return
	case err != nil:
		slog.Error("login failed", "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", nil)
		return
	}

	h.logAudit(r.Context(), audit.Event{
		Action:  "admin.login.success",
		ActorID: adminID,
	})

	h.sendRefreshCookie(w, refreshToken, refreshCookieAge)
	server.JSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
}

// Refresh handles POST /admin/api/auth/refresh, rotating the refresh token
// from the cookie. An invalid or replayed token clears the cookie so the
// client falls back to a fresh login.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := h.cookieToken(r)
	if token == "" {
		server.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing refresh token cookie", nil)
		return
	}

	accessToken, rotated, err := h.service.Refresh(r.Context(), token)
	switch {
	case errors.Is(err, ErrInvalidToken):
		h.sendRefreshCookie(w, "", -1)
		server.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired refresh token", nil)
		return
	case err != nil:
		slog.Error("token refresh failed", "error", err)
		server.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", nil)
		return
	}

	h.sendRefreshCookie(w, rotated, refreshCookieAge)
	server.JSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
}

// Logout handles POST /admin/api/auth/logout. The cookie is cleared even
// when the database delete fails; the token expires on its own regardless.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.cookieToken(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			slog.Error("logout failed to delete refresh token", "error", err)
		}
	}

	h.sendRefreshCookie(w, "", -1)
	server.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /admin/api/auth/me from the identity the middleware
// placed in the request context.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	adminID := AdminIDFromContext(r.Context())
	if adminID == "" {
		server.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated", nil)
		return
	}

	server.JSON(w, http.StatusOK, map[string]string{
		"id":    adminID,
		"email": EmailFromContext(r.Context()),
	})
}

// cookieToken extracts the refresh token from the request cookie, empty
// when absent.
func (h *Handler) cookieToken(r *http.Request) string {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// sendRefreshCookie writes the refresh cookie; a negative maxAge with an
// empty value clears it.
func (h *Handler) sendRefreshCookie(w http.ResponseWriter, value string, maxAge int) {
	cookie := &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     refreshCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !h.devMode,
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge < 0 {
		cookie.Expires = time.Unix(0, 0)
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) logAudit(ctx context.Context, event audit.Event) {
	if h.audits != nil {
		h.audits.Log(ctx, event)
	}
}
