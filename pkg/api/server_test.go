package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/config"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/middleware"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/session"
	"github.com/platinummonkey/helpdesk/pkg/storage"
)

const testSecret = "test-secret"

type harness struct {
	server   *Server
	mock     sqlmock.Sqlmock
	sessions *session.MemoryStore
	tokens   *auth.TokenManager
}

func newHarness(t *testing.T) *harness {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	blobs, err := storage.NewFileSystemStorage(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Server:    config.ServerConfig{CORSOrigins: []string{"*"}},
		Auth:      config.AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour, ResetTTL: time.Hour},
		RateLimit: config.RateLimitConfig{RPS: 100, Burst: 100},
	}
	registry := prometheus.NewRegistry()
	sessions := session.NewMemoryStore(16, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := NewServer(ctx, Deps{
		Config:   cfg,
		DB:       db,
		Blobs:    blobs,
		Logger:   observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{}),
		Metrics:  observability.NewMetrics(registry),
		Registry: registry,
		Sessions: sessions,
	})
	require.NoError(t, err)
	return &harness{server: srv, mock: mock, sessions: sessions, tokens: auth.NewTokenManager(testSecret, time.Hour)}
}

func (h *harness) signIn(t *testing.T) string {
	token, claims, err := h.tokens.Issue(7, 2, 1)
	require.NoError(t, err)
	require.NoError(t, h.sessions.Create(context.Background(), &session.Record{
		ID:        claims.ID,
		UserID:    7,
		RoleID:    2,
		CompanyID: 1,
		ExpiresAt: time.Now().Add(time.Hour),
	}, time.Hour))
	return token
}

func (h *harness) do(method, target, token, body string) (*httptest.ResponseRecorder, httputil.Envelope) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	var env httputil.Envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(context.Background(), Deps{})
	assert.Error(t, err)
}

func TestServer_PublicRoutes(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do("GET", "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(httputil.RequestIDHeader))

	rec, _ = h.do("GET", "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := h.do("POST", "/auth/login", "", `{"email":"not-an-email","password":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestServer_ProtectedRoutesNeedToken(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do("GET", "/tickets", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, middleware.SessionExpiredMessage, env.Message)

	rec, _ = h.do("GET", "/tickets", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_UnknownRoute(t *testing.T) {
	h := newHarness(t)
	rec, env := h.do("GET", "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", env.Message)
}

func TestServer_MatrixGatesRoutes(t *testing.T) {
	h := newHarness(t)
	token := h.signIn(t)

	h.mock.ExpectQuery("SELECT permissions FROM role_permissions").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"permissions"}).AddRow([]byte(`{"Tickets":{"view":1}}`)))

	rec, _ := h.do("POST", "/roles", token, `{"name":"Agent","company_id":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestServer_LogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	token := h.signIn(t)

	rec, env := h.do("POST", "/auth/logout", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully!", env.Message)

	rec, _ = h.do("POST", "/auth/logout", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodOptions, "/tickets", nil)
	req.Header.Set("Origin", "https://desk.example.com")
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://desk.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
