package projects

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
	"github.com/platinummonkey/helpdesk/pkg/storage"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

// PostgresService stores projects in PostgreSQL.
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const projectSelect = `
	SELECT p.id, p.name, p.company_id, COALESCE(c.name, ''),
	       COALESCE(ARRAY(SELECT pl.location_id FROM project_locations pl WHERE pl.project_id = p.id ORDER BY 1), '{}'),
	       p.pm_id, COALESCE(u.name, ''), p.status, p.is_active, p.created_at, p.updated_at
	FROM projects p
	LEFT JOIN companies c ON c.id = p.company_id
	LEFT JOIN users u ON u.id = p.pm_id`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(s scanner) (*Project, error) {
	p := &Project{}
	var locations pq.Int64Array
	if err := s.Scan(&p.ID, &p.Name, &p.CompanyID, &p.CompanyName, &locations,
		&p.PMID, &p.PMName, &p.Status, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.LocationIDs = []int64(locations)
	if p.LocationIDs == nil {
		p.LocationIDs = []int64{}
	}
	return p, nil
}

// ListProjects returns projects matching filter ordered by name.
func (s *PostgresService) ListProjects(ctx context.Context, filter Filter) ([]*Project, error) {
	query := projectSelect + `
		WHERE (EXISTS (SELECT 1 FROM companies v WHERE v.id = $1 AND v.is_internal) OR p.company_id = $1)
		  AND ($2 = 0 OR p.company_id = $2)
		  AND (NOT $3 OR p.is_active)
		ORDER BY p.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, filter.ViewerCompanyID, filter.CompanyID, filter.ActiveOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

// GetProject retrieves a project by ID
func (s *PostgresService) GetProject(ctx context.Context, id int64) (*Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, projectSelect+` WHERE p.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Project")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// CreateProject creates a project and its location set.
func (s *PostgresService) CreateProject(ctx context.Context, req ProjectRequest) (*Project, error) {
	req = prepare(req)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	locations := req.LocationIDs.Unique()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkLocations(ctx, tx, req.CompanyID, locations); err != nil {
		return nil, err
	}

	p := &Project{
		Name:        req.Name,
		CompanyID:   req.CompanyID,
		LocationIDs: locations,
		PMID:        req.PMID,
		Status:      req.Status,
		IsActive:    true,
	}
	query := `
		INSERT INTO projects (name, company_id, pm_id, status, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query, p.Name, p.CompanyID, p.PMID, p.Status).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, storage.TranslateError(fmt.Errorf("failed to create project: %w", err), "Project")
	}
	if err := replaceLocations(ctx, tx, p.ID, locations); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	audit.Record(ctx, audit.EventTypeDataCreate, audit.ResourceTypeProject,
		strconv.FormatInt(p.ID, 10), "project created: "+p.Name, nil)
	return p, nil
}

// UpdateProject replaces the editable fields and the location set.
func (s *PostgresService) UpdateProject(ctx context.Context, req UpdateProjectRequest) error {
	req.ProjectRequest = prepare(req.ProjectRequest)
	if err := validation.Struct(req); err != nil {
		return err
	}
	locations := req.LocationIDs.Unique()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkLocations(ctx, tx, req.CompanyID, locations); err != nil {
		return err
	}

	query := `
		UPDATE projects
		SET name = $1, company_id = $2, pm_id = $3, status = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := tx.ExecContext(ctx, query, req.Name, req.CompanyID, req.PMID, req.Status, time.Now().UTC(), req.ID)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to update project: %w", err), "Project")
	}
	if err := storage.RequireRow(result, "Project"); err != nil {
		return err
	}
	if err := replaceLocations(ctx, tx, req.ID, locations); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	audit.Record(ctx, audit.EventTypeDataUpdate, audit.ResourceTypeProject,
		strconv.FormatInt(req.ID, 10), "project updated: "+req.Name, nil)
	return nil
}

// SetActive activates or deactivates a project.
func (s *PostgresService) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	if err := storage.RequireRow(result, "Project"); err != nil {
		return err
	}

	audit.Record(ctx, audit.EventTypeDataStatusChange, audit.ResourceTypeProject,
		strconv.FormatInt(id, 10), "project status changed",
		&audit.ChangeDetails{After: map[string]interface{}{"is_active": active}})
	return nil
}

func prepare(req ProjectRequest) ProjectRequest {
	req.Name = strings.TrimSpace(req.Name)
	if req.Status == "" {
		req.Status = StatusActive
	}
	return req
}

// checkLocations verifies every location is an active address of companyID.
func checkLocations(ctx context.Context, tx *sql.Tx, companyID int64, locations []int64) error {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM company_locations WHERE company_id = $1 AND is_active AND id = ANY($2)`,
		companyID, pq.Array(locations),
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check locations: %w", err)
	}
	if n != len(locations) {
		return apperr.Validation("Selected locations must be active addresses of the selected company")
	}
	return nil
}

func replaceLocations(ctx context.Context, tx *sql.Tx, projectID int64, locations []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_locations WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to clear project locations: %w", err)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO project_locations (project_id, location_id) SELECT $1, UNNEST($2::BIGINT[])`,
		projectID, pq.Array(locations),
	)
	if err != nil {
		return fmt.Errorf("failed to save project locations: %w", err)
	}
	return nil
}
