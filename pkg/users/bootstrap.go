package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

// BootstrapRequest describes the first internal company and its
// administrator.
type BootstrapRequest struct {
	CompanyName string `json:"company" validate:"notblank,max=50"`
	RoleName    string `json:"role" validate:"notblank,max=100"`
	Name        string `json:"name" validate:"notblank,min=3,max=50"`
	Email       string `json:"email" validate:"required,email,max=50"`
	Password    string `json:"password" validate:"required,min=6,max=20,password"`
}

// Bootstrap seeds an empty database with an internal company, an admin
// role holding every permission, and one active admin user. It refuses to
// run once any user exists.
func Bootstrap(ctx context.Context, db *sql.DB, req BootstrapRequest) (*User, error) {
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.RoleName = strings.TrimSpace(req.RoleName)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	matrix, err := json.Marshal(permissions.DefaultCatalog().FullMatrix())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seeded bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users)`).Scan(&seeded); err != nil {
		return nil, fmt.Errorf("failed to check users: %w", err)
	}
	if seeded {
		return nil, apperr.Conflict("Users already exist; bootstrap skipped.")
	}

	u := &User{Name: req.Name, Email: req.Email, IsActive: true, RoleName: req.RoleName, CompanyName: req.CompanyName}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO companies (name, is_internal, is_active) VALUES ($1, TRUE, TRUE) RETURNING id`,
		req.CompanyName).Scan(&u.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO roles (name, company_id) VALUES ($1, $2) RETURNING id`,
		req.RoleName, u.CompanyID).Scan(&u.RoleID)
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO role_permissions (company_id, role_id, permissions) VALUES ($1, $2, $3)`,
		u.CompanyID, u.RoleID, matrix)
	if err != nil {
		return nil, fmt.Errorf("failed to grant permissions: %w", err)
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, role_id, company_id, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, created_at, updated_at
	`, u.Name, u.Email, hash, u.RoleID, u.CompanyID).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return u, nil
}
