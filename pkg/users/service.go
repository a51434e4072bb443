package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/storage"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

// PostgresService stores users in PostgreSQL.
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const userSelect = `
	SELECT u.id, u.name, u.email, u.password_hash, u.role_id, COALESCE(r.name, ''),
	       u.company_id, COALESCE(c.name, ''), u.is_active,
	       COALESCE(ARRAY(SELECT up.project_id FROM user_projects up WHERE up.user_id = u.id ORDER BY 1), '{}'),
	       u.created_at, u.updated_at
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id
	LEFT JOIN companies c ON c.id = u.company_id`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(s scanner) (*User, error) {
	u := &User{}
	var projects pq.Int64Array
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.passwordHash, &u.RoleID, &u.RoleName,
		&u.CompanyID, &u.CompanyName, &u.IsActive, &projects, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ProjectIDs = []int64(projects)
	if u.ProjectIDs == nil {
		u.ProjectIDs = []int64{}
	}
	return u, nil
}

// ListUsers returns users visible to filter.ViewerCompanyID ordered by name.
func (s *PostgresService) ListUsers(ctx context.Context, filter Filter) ([]*User, error) {
	query := userSelect + `
		WHERE (EXISTS (SELECT 1 FROM companies v WHERE v.id = $1 AND v.is_internal) OR u.company_id = $1)
		  AND ($2 = 0 OR u.company_id = $2)
		ORDER BY u.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, filter.ViewerCompanyID, filter.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// GetUser retrieves a user by ID
func (s *PostgresService) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, `u.id = $1`, id)
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *PostgresService) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `LOWER(u.email) = LOWER($1)`, strings.TrimSpace(email))
}

func (s *PostgresService) getUser(ctx context.Context, where string, arg interface{}) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("User")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// CreateUser hashes the password and creates an active user with its
// project assignments.
func (s *PostgresService) CreateUser(ctx context.Context, req SignupRequest) (*User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkRole(ctx, tx, req.RoleID, req.CompanyID); err != nil {
		return nil, err
	}

	u := &User{
		Name:       req.Name,
		Email:      req.Email,
		RoleID:     req.RoleID,
		CompanyID:  req.CompanyID,
		IsActive:   true,
		ProjectIDs: req.ProjectIDs.Unique(),
	}
	query := `
		INSERT INTO users (name, email, password_hash, role_id, company_id, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query, u.Name, u.Email, hash, u.RoleID, u.CompanyID).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, storage.TranslateError(fmt.Errorf("failed to create user: %w", err), "User with this email")
	}
	if err := replaceProjects(ctx, tx, u.ID, u.ProjectIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	audit.Record(ctx, audit.EventTypeDataCreate, audit.ResourceTypeUser,
		strconv.FormatInt(u.ID, 10), "user created: "+u.Email, nil)
	return u, nil
}

// UpdateUser replaces the editable fields and project assignments. The
// password is changed only when a new one is given.
func (s *PostgresService) UpdateUser(ctx context.Context, req UpdateRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return err
	}

	var hash sql.NullString
	if req.Password != "" {
		h, err := auth.HashPassword(req.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		hash = sql.NullString{String: h, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkRole(ctx, tx, req.RoleID, req.CompanyID); err != nil {
		return err
	}

	query := `
		UPDATE users
		SET name = $1, email = $2, password_hash = COALESCE($3, password_hash),
		    role_id = $4, company_id = $5, updated_at = $6
		WHERE id = $7
	`
	result, err := tx.ExecContext(ctx, query, req.Name, req.Email, hash, req.RoleID, req.CompanyID,
		time.Now().UTC(), req.ID)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to update user: %w", err), "User with this email")
	}
	if err := storage.RequireRow(result, "User"); err != nil {
		return err
	}
	if err := replaceProjects(ctx, tx, req.ID, req.ProjectIDs.Unique()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	audit.Record(ctx, audit.EventTypeDataUpdate, audit.ResourceTypeUser,
		strconv.FormatInt(req.ID, 10), "user updated: "+req.Email,
		&audit.ChangeDetails{After: map[string]interface{}{"password_changed": hash.Valid}})
	return nil
}

// SetActive activates or deactivates a user.
func (s *PostgresService) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	if err := storage.RequireRow(result, "User"); err != nil {
		return err
	}

	audit.Record(ctx, audit.EventTypeDataStatusChange, audit.ResourceTypeUser,
		strconv.FormatInt(id, 10), "user status changed",
		&audit.ChangeDetails{After: map[string]interface{}{"is_active": active}})
	return nil
}

// DeleteUser removes a user. Callers cannot delete themselves, and users
// referenced by tickets cannot be deleted.
func (s *PostgresService) DeleteUser(ctx context.Context, id int64) error {
	if id == auth.ActorID(ctx) {
		return apperr.Validation("You cannot delete your own account")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to delete user: %w", err), "User")
	}
	if err := storage.RequireRow(result, "User"); err != nil {
		return err
	}

	audit.Record(ctx, audit.EventTypeDataDelete, audit.ResourceTypeUser,
		strconv.FormatInt(id, 10), "user deleted", nil)
	return nil
}

func checkRole(ctx context.Context, tx *sql.Tx, roleID, companyID int64) error {
	var owner int64
	err := tx.QueryRowContext(ctx, `SELECT company_id FROM roles WHERE id = $1`, roleID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Validation("Selected role does not exist")
	}
	if err != nil {
		return fmt.Errorf("failed to get role: %w", err)
	}
	if owner != companyID {
		return apperr.Validation("Selected role does not belong to the selected company")
	}
	return nil
}

func replaceProjects(ctx context.Context, tx *sql.Tx, userID int64, projects []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_projects WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear user projects: %w", err)
	}
	if len(projects) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO user_projects (user_id, project_id) SELECT $1, UNNEST($2::BIGINT[])`,
		userID, pq.Array(projects),
	)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to assign projects: %w", err), "Project")
	}
	return nil
}
