package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
)

// PermissionStore caches the signed-in user's matrix. It is replaced
// wholesale on login and emptied on logout or any 401.
type PermissionStore struct {
	backend Backend
	logger  *observability.Logger

	mu     sync.RWMutex
	matrix permissions.Matrix
}

// NewPermissionStore creates an empty store persisting to backend.
func NewPermissionStore(backend Backend, logger *observability.Logger) *PermissionStore {
	return &PermissionStore{backend: backend, logger: logger}
}

// Restore reloads the persisted matrix. Missing or malformed data leaves the
// store empty; the problem is logged, never returned.
func (s *PermissionStore) Restore(ctx context.Context) {
	var m permissions.Matrix

	raw, ok, err := s.backend.Get(ctx, KeyPermissions)
	switch {
	case err != nil:
		s.logger.WithError(err).Warn("failed to read cached permissions")
	case ok && len(raw) > 0:
		if err := json.Unmarshal(raw, &m); err != nil {
			s.logger.WithError(err).Warn("discarding malformed cached permissions")
			m = nil
		}
	}

	s.mu.Lock()
	s.matrix = m
	s.mu.Unlock()
}

// Load replaces the matrix in memory and in the backend.
func (s *PermissionStore) Load(ctx context.Context, m permissions.Matrix) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	s.mu.Lock()
	s.matrix = m.Clone()
	s.mu.Unlock()

	if err := s.backend.Set(ctx, KeyPermissions, raw); err != nil {
		return fmt.Errorf("failed to persist permissions: %w", err)
	}
	return nil
}

// Clear empties the matrix and removes the persisted copy.
func (s *PermissionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.matrix = nil
	s.mu.Unlock()
	return s.backend.Delete(ctx, KeyPermissions)
}

// Can reports whether matrix[page][action] == 1. Anything absent is denied.
func (s *PermissionStore) Can(page permissions.Page, action permissions.Action) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matrix.Can(page, action)
}

// Matrix returns a copy of the cached matrix.
func (s *PermissionStore) Matrix() permissions.Matrix {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matrix.Clone()
}
