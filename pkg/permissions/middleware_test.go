package permissions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/observability"
)

type staticResolver struct {
	matrix Matrix
	err    error
	calls  int
}

func (s *staticResolver) Matrix(_ context.Context, _, _ int64) (Matrix, error) {
	s.calls++
	return s.matrix, s.err
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := auth.WithContext(req.Context(), &auth.AuthContext{UserID: 1, RoleID: 2, CompanyID: 3})
	return req.WithContext(ctx)
}

func TestGuard_RequirePermission(t *testing.T) {
	resolver := &staticResolver{matrix: Matrix{PageTickets: {ActionView: 1, ActionCreate: 0}}}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	guard := NewGuard(resolver, metrics)

	t.Run("allowed", func(t *testing.T) {
		called := false
		rec := httptest.NewRecorder()
		guard.RequirePermission(PageTickets, ActionView)(okHandler(&called)).ServeHTTP(rec, authedRequest("GET", "/tickets"))
		assert.True(t, called)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("denied", func(t *testing.T) {
		called := false
		rec := httptest.NewRecorder()
		guard.RequirePermission(PageTickets, ActionCreate)(okHandler(&called)).ServeHTTP(rec, authedRequest("POST", "/tickets"))
		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PermissionDenialsTotal.WithLabelValues("Tickets", "create")))
	})

	t.Run("absent page denies", func(t *testing.T) {
		called := false
		rec := httptest.NewRecorder()
		guard.RequirePermission(PageUsers, ActionEdit)(okHandler(&called)).ServeHTTP(rec, authedRequest("POST", "/auth/update"))
		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		called := false
		rec := httptest.NewRecorder()
		guard.RequirePermission(PageTickets, ActionView)(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest("GET", "/tickets", nil))
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGuard_ResolverError(t *testing.T) {
	guard := NewGuard(&staticResolver{err: errors.New("db down")}, nil)

	called := false
	rec := httptest.NewRecorder()
	guard.RequirePermission(PageTickets, ActionView)(okHandler(&called)).ServeHTTP(rec, authedRequest("GET", "/tickets"))
	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestGuard_ResolvesOncePerRequest(t *testing.T) {
	resolver := &staticResolver{matrix: Matrix{PageTickets: {ActionView: 1, ActionEdit: 1}}}
	guard := NewGuard(resolver, nil)

	var seen Matrix
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	})
	h := guard.RequirePermission(PageTickets, ActionView)(guard.RequirePermission(PageTickets, ActionEdit)(inner))
	h.ServeHTTP(httptest.NewRecorder(), authedRequest("POST", "/tickets/update"))

	assert.Equal(t, 1, resolver.calls)
	require.NotNil(t, seen)
	assert.True(t, seen.Can(PageTickets, ActionEdit))
	assert.Nil(t, FromContext(context.Background()))
}
