package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/session"
)

// SessionExpiredMessage is returned for any request whose token is missing,
// invalid, expired or revoked.
const SessionExpiredMessage = "Session expired. Please log in again."

// AuthMiddleware authenticates requests with a bearer JWT backed by a server
// session.
type AuthMiddleware struct {
	tokens   *auth.TokenManager
	sessions session.ServerStore
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens *auth.TokenManager, sessions session.ServerStore, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		sessions: sessions,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			unauthorized(w)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			unauthorized(w)
			return
		}

		claims, err := m.tokens.Parse(parts[1])
		if err != nil {
			unauthorized(w)
			return
		}

		rec, err := m.sessions.Get(r.Context(), claims.ID)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				observability.FromContext(r.Context()).WithError(err).Error("failed to load session")
			}
			unauthorized(w)
			return
		}
		if rec.UserID != claims.UserID() {
			unauthorized(w)
			return
		}

		ctx := auth.WithContext(r.Context(), &auth.AuthContext{
			UserID:      rec.UserID,
			Name:        rec.Name,
			Email:       rec.Email,
			RoleID:      rec.RoleID,
			RoleName:    rec.RoleName,
			CompanyID:   rec.CompanyID,
			CompanyName: rec.CompanyName,
			SessionID:   rec.ID,
			ExpiresAt:   rec.ExpiresAt,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests that carry no authenticated caller.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.FromContext(r.Context()) == nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	httputil.WriteUnauthorized(w, SessionExpiredMessage)
}
