package auth

import (
	"context"
	"time"

	"github.com/platinummonkey/helpdesk/pkg/contextkeys"
)

// AuthContext is the authenticated caller of a request.
type AuthContext struct {
	UserID      int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	RoleID      int64     `json:"role_id"`
	RoleName    string    `json:"role"`
	CompanyID   int64     `json:"company_id"`
	CompanyName string    `json:"company_name"`
	SessionID   string    `json:"-"`
	ExpiresAt   time.Time `json:"-"`
}

// WithContext stores ac in ctx along with the caller ids used for logging.
func WithContext(ctx context.Context, ac *AuthContext) context.Context {
	ctx = contextkeys.WithAuth(ctx, ac)
	return contextkeys.WithCaller(ctx, contextkeys.Caller{UserID: ac.UserID, CompanyID: ac.CompanyID})
}

// FromContext returns the authenticated caller, or nil.
func FromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	return ac
}

// ActorID returns the caller's user id, or 0 when unauthenticated.
func ActorID(ctx context.Context) int64 {
	if ac := FromContext(ctx); ac != nil {
		return ac.UserID
	}
	return 0
}
