package projects

import (
	"context"
	"fmt"
	"strconv"

	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/storage"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

// ListUsers returns the users assigned to a project, most recent first.
func (s *PostgresService) ListUsers(ctx context.Context, projectID int64) ([]*AssignedUser, error) {
	query := `
		SELECT u.id, u.name, u.email, up.assigned_at
		FROM user_projects up
		JOIN users u ON u.id = up.user_id
		WHERE up.project_id = $1
		ORDER BY up.assigned_at DESC, u.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project users: %w", err)
	}
	defer rows.Close()

	users := make([]*AssignedUser, 0)
	for rows.Next() {
		u := &AssignedUser{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project users: %w", err)
	}
	return users, nil
}

// Assign adds a user to a project. Assigning twice is a no-op.
func (s *PostgresService) Assign(ctx context.Context, req AssignmentRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_projects (user_id, project_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		req.UserID, req.ProjectID,
	)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to assign user: %w", err), "Project")
	}

	audit.Record(ctx, audit.EventTypeDataAssign, audit.ResourceTypeProject,
		strconv.FormatInt(req.ProjectID, 10), "user "+strconv.FormatInt(req.UserID, 10)+" assigned", nil)
	return nil
}

// Unassign removes a user from a project.
func (s *PostgresService) Unassign(ctx context.Context, req AssignmentRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_projects WHERE user_id = $1 AND project_id = $2`,
		req.UserID, req.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("failed to unassign user: %w", err)
	}
	if err := storage.RequireRow(result, "Project assignment"); err != nil {
		return err
	}

	audit.Record(ctx, audit.EventTypeDataUnassign, audit.ResourceTypeProject,
		strconv.FormatInt(req.ProjectID, 10), "user "+strconv.FormatInt(req.UserID, 10)+" unassigned", nil)
	return nil
}
