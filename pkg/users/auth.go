package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/async"
	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
	"github.com/platinummonkey/helpdesk/pkg/session"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

// Messages shown by the auth flows.
const (
	InvalidCredentialsMessage = "Invalid email or password"
	InactiveAccountMessage    = "Your account is inactive. Please contact your administrator."
	ResetRequestedMessage     = "If the email is registered, a password reset link has been sent."
	InvalidResetTokenMessage  = "This reset link is invalid or has expired."
)

const notifyTimeout = 30 * time.Second

// AuthService implements login, logout and password reset.
type AuthService struct {
	db       *sql.DB
	users    *PostgresService
	tokens   *auth.TokenManager
	sessions session.ServerStore
	matrices permissions.Resolver
	notifier Notifier
	resetTTL time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// AuthConfig wires an AuthService. Metrics may be nil.
type AuthConfig struct {
	DB       *sql.DB
	Users    *PostgresService
	Tokens   *auth.TokenManager
	Sessions session.ServerStore
	Matrices permissions.Resolver
	Notifier Notifier
	ResetTTL time.Duration
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

// NewAuthService creates an auth service.
func NewAuthService(cfg AuthConfig) *AuthService {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NewLogNotifier(cfg.Logger)
	}
	return &AuthService{
		db:       cfg.DB,
		users:    cfg.Users,
		tokens:   cfg.Tokens,
		sessions: cfg.Sessions,
		matrices: cfg.Matrices,
		notifier: cfg.Notifier,
		resetTTL: cfg.ResetTTL,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      time.Now,
	}
}

// Login verifies credentials, opens a server session and returns the token
// with the caller's profile and permission matrix.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.loginFailed(ctx, "unknown_user")
			return nil, apperr.Unauthorized(InvalidCredentialsMessage)
		}
		return nil, err
	}
	if err := auth.VerifyPassword(u.passwordHash, req.Password); err != nil {
		s.loginFailed(ctx, "bad_password")
		return nil, apperr.Unauthorized(InvalidCredentialsMessage)
	}
	if !u.IsActive {
		s.loginFailed(ctx, "inactive")
		return nil, apperr.Forbidden(InactiveAccountMessage)
	}

	matrix, err := s.matrices.Matrix(ctx, u.CompanyID, u.RoleID)
	if err != nil {
		return nil, err
	}

	token, claims, err := s.tokens.Issue(u.ID, u.RoleID, u.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	rec := &session.Record{
		ID:          claims.ID,
		UserID:      u.ID,
		RoleID:      u.RoleID,
		CompanyID:   u.CompanyID,
		Name:        u.Name,
		Email:       u.Email,
		RoleName:    u.RoleName,
		CompanyName: u.CompanyName,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if err := s.sessions.Create(ctx, rec, s.tokens.TTL()); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.observeLogin("success")
	ctx = auth.WithContext(ctx, &auth.AuthContext{UserID: u.ID, Email: u.Email, CompanyID: u.CompanyID})
	audit.Record(ctx, audit.EventTypeAuthLogin, audit.ResourceTypeUser,
		strconv.FormatInt(u.ID, 10), "user logged in", nil)

	return &LoginResult{Token: token, User: u.profile(), Permissions: matrix}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, reason string) {
	s.observeLogin(reason)
	audit.RecordFailure(ctx, audit.EventTypeAuthLoginFailed, "login failed: "+reason, nil)
}

func (s *AuthService) observeLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

// Logout revokes the caller's session.
func (s *AuthService) Logout(ctx context.Context) error {
	ac := auth.FromContext(ctx)
	if ac == nil {
		return apperr.Unauthorized("Authentication required")
	}
	if err := s.sessions.Delete(ctx, ac.SessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	audit.Record(ctx, audit.EventTypeAuthLogout, audit.ResourceTypeUser,
		strconv.FormatInt(ac.UserID, 10), "user logged out", nil)
	return nil
}

// ForgotPassword stores a hashed reset token for an active user and sends
// the token in the background. The result does not reveal whether the
// email is registered. The returned channel is closed once delivery has
// finished; it is already closed when nothing is sent.
func (s *AuthService) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (<-chan struct{}, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && !u.IsActive) {
		s.logger.WithField("email", req.Email).Debug("password reset for unknown or inactive account")
		return closed(), nil
	}
	if err != nil {
		return nil, err
	}

	token, hash, err := auth.NewResetToken()
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO password_resets (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		u.ID, hash, s.now().UTC().Add(s.resetTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store reset token: %w", err)
	}

	audit.Record(ctx, audit.EventTypeAuthResetRequest, audit.ResourceTypeUser,
		strconv.FormatInt(u.ID, 10), "password reset requested", nil)

	done := async.SafeGo(context.WithoutCancel(ctx), notifyTimeout, s.logger, "password reset notification",
		func(ctx context.Context) error {
			return s.notifier.SendPasswordReset(ctx, u.Email, u.Name, token)
		})
	return done, nil
}

// ResetPassword consumes a reset token, sets the new password and revokes
// every session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	var resetID, userID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id FROM password_resets
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
		FOR UPDATE`,
		auth.HashResetToken(req.Token), now,
	).Scan(&resetID, &userID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Validation(InvalidResetTokenMessage)
	}
	if err != nil {
		return fmt.Errorf("failed to look up reset token: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, now, userID); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE password_resets SET used_at = $1 WHERE id = $2`, now, resetID); err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := s.sessions.DeleteUser(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("failed to revoke sessions after password reset")
	}
	audit.Record(ctx, audit.EventTypeAuthPasswordReset, audit.ResourceTypeUser,
		strconv.FormatInt(userID, 10), "password reset", nil)
	return nil
}

// PurgeExpiredResets deletes reset tokens that are used or expired.
func (s *AuthService) PurgeExpiredResets(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM password_resets WHERE used_at IS NOT NULL OR expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge reset tokens: %w", err)
	}
	return result.RowsAffected()
}

func closed() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
