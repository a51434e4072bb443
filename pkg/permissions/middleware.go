package permissions

import (
	"context"
	"net/http"

	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/contextkeys"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/observability"
)

// Resolver returns the matrix granted to a role within a company.
type Resolver interface {
	Matrix(ctx context.Context, companyID, roleID int64) (Matrix, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, companyID, roleID int64) (Matrix, error)

// Matrix calls f.
func (f ResolverFunc) Matrix(ctx context.Context, companyID, roleID int64) (Matrix, error) {
	return f(ctx, companyID, roleID)
}

// Guard enforces the matrix on HTTP routes.
type Guard struct {
	resolver Resolver
	metrics  *observability.Metrics
}

// NewGuard creates a guard. metrics may be nil.
func NewGuard(resolver Resolver, metrics *observability.Metrics) *Guard {
	return &Guard{resolver: resolver, metrics: metrics}
}

// RequirePermission rejects the request with 401 when unauthenticated and
// 403 when the caller's matrix does not allow action on page. The resolved
// matrix is stored in the request context.
func (g *Guard) RequirePermission(page Page, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, m, ok := g.resolve(w, r)
			if !ok {
				return
			}

			if !m.Can(page, action) {
				if g.metrics != nil {
					g.metrics.PermissionDenialsTotal.WithLabelValues(string(page), string(action)).Inc()
				}
				audit.RecordDenied(ctx, r, audit.ResourceTypePermission, string(page)+"."+string(action), string(page)+"."+string(action))
				httputil.WriteForbidden(w, "You do not have permission to perform this action")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Attach resolves the caller's matrix into the context without checking any
// cell, for routes that filter their output by permission.
func (g *Guard) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _, ok := g.resolve(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) resolve(w http.ResponseWriter, r *http.Request) (context.Context, Matrix, bool) {
	ctx := r.Context()
	if m, ok := ctx.Value(contextkeys.MatrixKey).(Matrix); ok {
		return ctx, m, true
	}

	ac := auth.FromContext(ctx)
	if ac == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return ctx, nil, false
	}

	m, err := g.resolver.Matrix(ctx, ac.CompanyID, ac.RoleID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return ctx, nil, false
	}
	return contextkeys.WithMatrix(ctx, m), m, true
}

// FromContext returns the matrix resolved for this request, or nil. A nil
// matrix denies everything.
func FromContext(ctx context.Context) Matrix {
	m, _ := ctx.Value(contextkeys.MatrixKey).(Matrix)
	return m
}
