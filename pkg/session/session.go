package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/helpdesk/pkg/observability"
)

// Profile is the signed-in user as returned by login.
type Profile struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	RoleID      int64  `json:"role_id"`
	CompanyID   int64  `json:"company_id"`
	CompanyName string `json:"company_name"`
}

// Session is the client's signed-in state. It is passed explicitly to
// whatever needs it.
type Session struct {
	backend     Backend
	logger      *observability.Logger
	Permissions *PermissionStore
}

// New creates a session over backend and restores any cached permissions.
func New(ctx context.Context, backend Backend, logger *observability.Logger) *Session {
	s := &Session{
		backend:     backend,
		logger:      logger,
		Permissions: NewPermissionStore(backend, logger),
	}
	s.Permissions.Restore(ctx)
	return s
}

func (s *Session) get(ctx context.Context, key string, dest interface{}) bool {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("failed to read session value")
		return false
	}
	if !ok || len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("discarding malformed session value")
		return false
	}
	return true
}

func (s *Session) set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode session value %s: %w", key, err)
	}
	return s.backend.Set(ctx, key, raw)
}

// Token returns the bearer token, or "" when signed out.
func (s *Session) Token(ctx context.Context) string {
	var token string
	s.get(ctx, KeyToken, &token)
	return token
}

// SetToken stores the bearer token.
func (s *Session) SetToken(ctx context.Context, token string) error {
	return s.set(ctx, KeyToken, token)
}

// User returns the stored profile, or nil.
func (s *Session) User(ctx context.Context) *Profile {
	var p Profile
	if !s.get(ctx, KeyUser, &p) {
		return nil
	}
	return &p
}

// SetUser stores the profile.
func (s *Session) SetUser(ctx context.Context, p *Profile) error {
	return s.set(ctx, KeyUser, p)
}

// Markers returns the remembered data table page and last clicked row.
func (s *Session) Markers(ctx context.Context) (page int, row int64) {
	s.get(ctx, KeyDataTablePage, &page)
	s.get(ctx, KeyDataTableRow, &row)
	return page, row
}

// SetMarkers remembers the data table page and last clicked row.
func (s *Session) SetMarkers(ctx context.Context, page int, row int64) error {
	if err := s.set(ctx, KeyDataTablePage, page); err != nil {
		return err
	}
	return s.set(ctx, KeyDataTableRow, row)
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated(ctx context.Context) bool {
	return s.Token(ctx) != ""
}

// Clear drops the token, profile and permissions. Data table markers
// survive so a re-login returns to the same place.
func (s *Session) Clear(ctx context.Context) error {
	if err := s.Permissions.Clear(ctx); err != nil {
		return err
	}
	return s.backend.Delete(ctx, KeyToken, KeyUser)
}

// Reset drops every session key.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.Clear(ctx); err != nil {
		return err
	}
	return s.backend.Delete(ctx, KeyDataTablePage, KeyDataTableRow)
}
