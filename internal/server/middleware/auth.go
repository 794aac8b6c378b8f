package middleware

import (
	"context"
	"net/http"

	"github.com/wardenhq/warden/internal/service"
)

// SessionCookie is the name of the session token cookie.
const SessionCookie = "session-token"

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Principal is the authenticated admin identity making the request.
type Principal struct {
	AdminID     int64
	Username    string
	IsBaseAdmin bool
}

// Authenticate returns an HTTP middleware that resolves the session cookie.
// On success a Principal is attached to the request context; otherwise a 401
// JSON error is returned. Session validity is re-checked against the store on
// every request, never cached.
func Authenticate(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			_, admin, err := authSvc.ResolveSession(r.Context(), cookie.Value)
			if err != nil {
				// Storage errors and invalid sessions both deny access here;
				// an authenticated surface fails closed.
				writeError(w, http.StatusUnauthorized, "Invalid session")
				return
			}

			principal := &Principal{
				AdminID:     admin.ID,
				Username:    admin.Username,
				IsBaseAdmin: admin.IsBaseAdmin,
			}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}
