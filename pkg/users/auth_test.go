package users

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
	"github.com/platinummonkey/helpdesk/pkg/session"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []string
	token string
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, email, _, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, email)
	n.token = token
	return nil
}

type authFixture struct {
	svc      *AuthService
	mock     sqlmock.Sqlmock
	sessions *session.MemoryStore
	notifier *recordingNotifier
	metrics  *observability.Metrics
	tokens   *auth.TokenManager
}

func newAuthFixture(t *testing.T) *authFixture {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var buf bytes.Buffer
	f := &authFixture{
		mock:     mock,
		sessions: session.NewMemoryStore(16, time.Hour),
		notifier: &recordingNotifier{},
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		tokens:   auth.NewTokenManager("test-secret", time.Hour),
	}
	f.svc = NewAuthService(AuthConfig{
		DB:       db,
		Users:    NewPostgresService(db),
		Tokens:   f.tokens,
		Sessions: f.sessions,
		Matrices: permissions.ResolverFunc(func(_ context.Context, companyID, roleID int64) (permissions.Matrix, error) {
			return permissions.Matrix{permissions.PageTickets: {permissions.ActionView: 1}}, nil
		}),
		Notifier: f.notifier,
		Logger:   observability.NewLogger(observability.DebugLevel, &buf),
		Metrics:  f.metrics,
	})
	return f
}

func (f *authFixture) expectUser(t *testing.T, password string, active bool) {
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	now := time.Now()
	f.mock.ExpectQuery("LOWER\\(u.email\\) = LOWER\\(\\$1\\)").
		WithArgs("dana@acme.test").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(11, "Dana", "dana@acme.test", hash, 3, "Agent", 2, "Acme", active, "{}", now, now))
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newAuthFixture(t)
		f.expectUser(t, "secret1", true)

		result, err := f.svc.Login(context.Background(), LoginRequest{Email: "dana@acme.test", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, "Agent", result.User.Role)
		assert.True(t, result.Permissions.Can(permissions.PageTickets, permissions.ActionView))

		claims, err := f.tokens.Parse(result.Token)
		require.NoError(t, err)
		rec, err := f.sessions.Get(context.Background(), claims.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(11), rec.UserID)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginAttemptsTotal.WithLabelValues("success")))
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture(t)
		f.expectUser(t, "secret1", true)

		_, err := f.svc.Login(context.Background(), LoginRequest{Email: "dana@acme.test", Password: "secret2"})
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
		assert.Equal(t, InvalidCredentialsMessage, apperr.MessageOf(err))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginAttemptsTotal.WithLabelValues("bad_password")))
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newAuthFixture(t)
		f.mock.ExpectQuery("LOWER\\(u.email\\)").WillReturnError(sql.ErrNoRows)

		_, err := f.svc.Login(context.Background(), LoginRequest{Email: "nobody@acme.test", Password: "secret1"})
		assert.Equal(t, InvalidCredentialsMessage, apperr.MessageOf(err))
	})

	t.Run("inactive", func(t *testing.T) {
		f := newAuthFixture(t)
		f.expectUser(t, "secret1", false)

		_, err := f.svc.Login(context.Background(), LoginRequest{Email: "dana@acme.test", Password: "secret1"})
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	})
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Create(ctx, &session.Record{ID: "sid", UserID: 11, ExpiresAt: time.Now().Add(time.Hour)}, time.Hour))

	ctx = auth.WithContext(ctx, &auth.AuthContext{UserID: 11, SessionID: "sid"})
	require.NoError(t, f.svc.Logout(ctx))

	_, err := f.sessions.Get(ctx, "sid")
	assert.True(t, errors.Is(err, session.ErrNotFound))
}

func TestForgotPassword(t *testing.T) {
	t.Run("registered", func(t *testing.T) {
		f := newAuthFixture(t)
		f.expectUser(t, "secret1", true)
		f.mock.ExpectExec("INSERT INTO password_resets").
			WithArgs(int64(11), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		done, err := f.svc.ForgotPassword(context.Background(), ForgotPasswordRequest{Email: "dana@acme.test"})
		require.NoError(t, err)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("notification was not delivered")
		}

		f.notifier.mu.Lock()
		defer f.notifier.mu.Unlock()
		assert.Equal(t, []string{"dana@acme.test"}, f.notifier.sent)
		assert.NotEmpty(t, f.notifier.token)
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("unknown email sends nothing", func(t *testing.T) {
		f := newAuthFixture(t)
		f.mock.ExpectQuery("LOWER\\(u.email\\)").WillReturnError(sql.ErrNoRows)

		done, err := f.svc.ForgotPassword(context.Background(), ForgotPasswordRequest{Email: "nobody@acme.test"})
		require.NoError(t, err)
		<-done
		assert.Empty(t, f.notifier.sent)
	})
}

func TestResetPassword(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		f := newAuthFixture(t)
		ctx := context.Background()
		require.NoError(t, f.sessions.Create(ctx, &session.Record{ID: "old", UserID: 11, ExpiresAt: time.Now().Add(time.Hour)}, time.Hour))

		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FROM password_resets").
			WithArgs(auth.HashResetToken("tok"), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(5, 11))
		f.mock.ExpectExec("UPDATE users SET password_hash").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), int64(11)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectExec("UPDATE password_resets SET used_at").
			WithArgs(sqlmock.AnyArg(), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		require.NoError(t, f.svc.ResetPassword(ctx, ResetPasswordRequest{Token: "tok", Password: "newpass1"}))
		require.NoError(t, f.mock.ExpectationsWereMet())

		_, err := f.sessions.Get(ctx, "old")
		assert.True(t, errors.Is(err, session.ErrNotFound))
	})

	t.Run("expired or used token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FROM password_resets").WillReturnError(sql.ErrNoRows)
		f.mock.ExpectRollback()

		err := f.svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: "tok", Password: "newpass1"})
		assert.Equal(t, InvalidResetTokenMessage, apperr.MessageOf(err))
	})

	t.Run("weak password rejected before lookup", func(t *testing.T) {
		f := newAuthFixture(t)
		err := f.svc.ResetPassword(context.Background(), ResetPasswordRequest{Token: "tok", Password: "short"})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestPurgeExpiredResets(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectExec("DELETE FROM password_resets").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := f.svc.PurgeExpiredResets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
