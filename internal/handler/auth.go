package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/server/middleware"
	"github.com/wardenhq/warden/internal/service"
)

// AuthHandler serves the login, logout, and session-info endpoints.
type AuthHandler struct {
	authSvc      *service.AuthService
	logger       *slog.Logger
	cookieSecure bool
}

// NewAuthHandler creates an AuthHandler. cookieSecure should be on in
// production; tests and plain-HTTP dev setups turn it off.
func NewAuthHandler(authSvc *service.AuthService, logger *slog.Logger, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		authSvc:      authSvc,
		logger:       logger,
		cookieSecure: cookieSecure,
	}
}

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	AccessKey string `json:"accessKey"`
}

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Success bool              `json:"success"`
	User    model.PublicAdmin `json:"user"`
}

// Login authenticates an admin and binds the session token to a cookie.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := middleware.ClientIP(r)
	userAgent := r.UserAgent()

	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Malformed input is terminal: no ledger write, no detector feed.
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	result, err := h.authSvc.Login(r.Context(), service.LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		AccessKey: req.AccessKey,
		IPAddress: ip,
		UserAgent: userAgent,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			// One generic message for unknown user, inactive account, and
			// wrong password: no user enumeration.
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, service.ErrAccessKeyMismatch):
			writeError(w, http.StatusUnauthorized, "Access key incorrect")
		default:
			h.logger.Error("login failed", "ip", ip, "error", err)
			writeError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	h.setSessionCookie(w, result.Token, int(h.authSvc.SessionLifetime().Seconds()))
	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		User:    result.Admin.Public(),
	})
}

// Logout revokes the session named by the cookie and clears it. Always 200:
// logging out an absent or already-revoked session is not an error.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(middleware.SessionCookie); err == nil {
		token = cookie.Value
	}

	// Upstream layers pass the acting admin out-of-band for the audit trail.
	var adminID *int64
	if raw := r.Header.Get("X-Admin-ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			adminID = &id
		}
	}

	if err := h.authSvc.Logout(r.Context(), token, adminID, middleware.ClientIP(r), r.UserAgent()); err != nil {
		h.logger.Warn("logout revoke failed", "error", err)
	}

	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Me resolves the session cookie and returns the owning admin.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	_, admin, err := h.authSvc.ResolveSession(r.Context(), cookie.Value)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": admin.Public()})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
