package permissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/helpdesk/pkg/storage"
)

// Store handles role and permission matrix persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new permission store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListRoles lists every role with its company name, ordered by company then
// role name.
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	query := `
		SELECT r.id, r.name, r.company_id, COALESCE(c.name, ''), r.created_at, r.updated_at
		FROM roles r
		LEFT JOIN companies c ON c.id = r.company_id
		ORDER BY c.name ASC NULLS LAST, r.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]Role, 0)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CompanyID, &role.CompanyName, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	query := `
		SELECT r.id, r.name, r.company_id, COALESCE(c.name, ''), r.created_at, r.updated_at
		FROM roles r
		LEFT JOIN companies c ON c.id = r.company_id
		WHERE r.id = $1
	`

	var role Role
	err := s.db.QueryRowContext(ctx, query, roleID).Scan(
		&role.ID, &role.Name, &role.CompanyID, &role.CompanyName, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.TranslateError(err, "Role")
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

// CreateRole inserts role and fills its ID and timestamps.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO roles (name, company_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id
	`

	now := time.Now().UTC()
	if err := s.db.QueryRowContext(ctx, query, role.Name, role.CompanyID, now).Scan(&role.ID); err != nil {
		return storage.TranslateError(fmt.Errorf("failed to create role: %w", err), "Role")
	}
	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// UpdateRole renames a role.
func (s *Store) UpdateRole(ctx context.Context, roleID int64, name string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE roles SET name = $1, updated_at = $2 WHERE id = $3`,
		name, time.Now().UTC(), roleID,
	)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to update role: %w", err), "Role")
	}
	return storage.RequireRow(result, "Role")
}

// DeleteRole removes a role and its matrix. Roles still assigned to users
// cannot be deleted.
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete role permissions: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to delete role: %w", err), "Role")
	}
	if err := storage.RequireRow(result, "Role"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetMatrix returns the stored matrix for the pair, or nil when none has
// been saved.
func (s *Store) GetMatrix(ctx context.Context, companyID, roleID int64) (Matrix, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT permissions FROM role_permissions WHERE company_id = $1 AND role_id = $2`,
		companyID, roleID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permissions: %w", err)
	}

	var m Matrix
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	return m, nil
}

// SaveMatrix upserts the matrix for the pair.
func (s *Store) SaveMatrix(ctx context.Context, companyID, roleID int64, m Matrix, updatedBy int64) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO role_permissions (company_id, role_id, permissions, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, role_id)
		DO UPDATE SET permissions = EXCLUDED.permissions,
		              updated_by = EXCLUDED.updated_by,
		              updated_at = EXCLUDED.updated_at
	`

	var actor sql.NullInt64
	if updatedBy > 0 {
		actor = sql.NullInt64{Int64: updatedBy, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, query, companyID, roleID, raw, actor, time.Now().UTC()); err != nil {
		return storage.TranslateError(fmt.Errorf("failed to save permissions: %w", err), "Role permissions")
	}
	return nil
}
