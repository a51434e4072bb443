package companies

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

// PostgresService stores companies, links and locations in PostgreSQL.
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const companyColumns = `
	c.id, c.name, c.permanent_address, c.contact_no, c.mail_address, c.is_internal, c.is_active,
	COALESCE(ARRAY(
		SELECT CASE WHEN l.company_id1 = c.id THEN l.company_id2 ELSE l.company_id1 END
		FROM company_links l
		WHERE l.company_id1 = c.id OR l.company_id2 = c.id
		ORDER BY 1
	), '{}'),
	c.created_at, c.updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCompany(s scanner) (*Company, error) {
	c := &Company{}
	var links pq.Int64Array
	if err := s.Scan(&c.ID, &c.Name, &c.PermanentAddress, &c.ContactNo, &c.MailAddress,
		&c.IsInternal, &c.IsActive, &links, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.LinkedCompanyIDs = []int64(links)
	if c.LinkedCompanyIDs == nil {
		c.LinkedCompanyIDs = []int64{}
	}
	return c, nil
}

// ListCompanies returns the companies visible to a member of viewerCompanyID:
// every company for the internal company, otherwise the viewer's own company
// and the companies linked to it.
func (s *PostgresService) ListCompanies(ctx context.Context, viewerCompanyID int64) ([]*Company, error) {
	query := `
		SELECT ` + companyColumns + `
		FROM companies c
		WHERE EXISTS (SELECT 1 FROM companies v WHERE v.id = $1 AND v.is_internal)
		   OR c.id = $1
		   OR EXISTS (
				SELECT 1 FROM company_links l
				WHERE (l.company_id1 = $1 AND l.company_id2 = c.id)
				   OR (l.company_id2 = $1 AND l.company_id1 = c.id))
		ORDER BY c.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, viewerCompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	companies := make([]*Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate companies: %w", err)
	}
	return companies, nil
}

// GetCompany retrieves a company by ID
func (s *PostgresService) GetCompany(ctx context.Context, id int64) (*Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies c WHERE c.id = $1`
	c, err := scanCompany(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Company")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

// IsInternal reports whether companyID is the operator company.
func (s *PostgresService) IsInternal(ctx context.Context, companyID int64) (bool, error) {
	var internal bool
	err := s.db.QueryRowContext(ctx, `SELECT is_internal FROM companies WHERE id = $1`, companyID).Scan(&internal)
	if errors.Is(err, sql.ErrNoRows) {
		return false, apperr.NotFound("Company")
	}
	if err != nil {
		return false, fmt.Errorf("failed to get company: %w", err)
	}
	return internal, nil
}

// CreateCompany creates an active company.
func (s *PostgresService) CreateCompany(ctx context.Context, req CompanyRequest) (*Company, error) {
	req = trimCompany(req)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	c := &Company{
		Name:             req.Name,
		PermanentAddress: req.PermanentAddress,
		ContactNo:        req.ContactNo,
		MailAddress:      req.MailAddress,
		IsActive:         true,
		LinkedCompanyIDs: []int64{},
	}
	query := `
		INSERT INTO companies (name, permanent_address, contact_no, mail_address, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, c.Name, c.PermanentAddress, c.ContactNo, c.MailAddress).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, storage.TranslateError(fmt.Errorf("failed to create company: %w", err), "Company")
	}

	audit.Record(ctx, audit.EventTypeDataCreate, audit.ResourceTypeCompany,
		strconv.FormatInt(c.ID, 10), "company created: "+c.Name, nil)
	return c, nil
}

// UpdateCompany replaces the editable fields of a company.
func (s *PostgresService) UpdateCompany(ctx context.Context, req UpdateCompanyRequest) error {
	req.CompanyRequest = trimCompany(req.CompanyRequest)
	if err := validation.Struct(req); err != nil {
		return err
	}

	query := `
		UPDATE companies
		SET name = $1, permanent_address = $2, contact_no = $3, mail_address = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := s.db.ExecContext(ctx, query, req.Name, req.PermanentAddress, req.ContactNo,
		req.MailAddress, time.Now().UTC(), req.ID)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to update company: %w", err), "Company")
	}
	if err := storage.RequireRow(result, "Company"); err != nil {
		return err
	}

	audit.Record(ctx, audit.EventTypeDataUpdate, audit.ResourceTypeCompany,
		strconv.FormatInt(req.ID, 10), "company updated: "+req.Name, nil)
	return nil
}

// SetCompanyActive activates or deactivates a company.
func (s *PostgresService) SetCompanyActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE companies SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update company status: %w", err)
	}
	if err := storage.RequireRow(result, "Company"); err != nil {
		return err
	}

	audit.Record(ctx, audit.EventTypeDataStatusChange, audit.ResourceTypeCompany,
		strconv.FormatInt(id, 10), "company status changed",
		&audit.ChangeDetails{After: map[string]interface{}{"is_active": active}})
	return nil
}

// ListMembers returns the users of a company.
func (s *PostgresService) ListMembers(ctx context.Context, companyID int64) ([]*Member, error) {
	query := `
		SELECT u.id, u.name, u.email, COALESCE(r.name, ''), u.is_active
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE u.company_id = $1
		ORDER BY u.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list company users: %w", err)
	}
	defer rows.Close()

	members := make([]*Member, 0)
	for rows.Next() {
		m := &Member{}
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.RoleName, &m.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan company user: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate company users: %w", err)
	}
	return members, nil
}

func trimCompany(req CompanyRequest) CompanyRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.PermanentAddress = strings.TrimSpace(req.PermanentAddress)
	req.ContactNo = strings.TrimSpace(req.ContactNo)
	req.MailAddress = strings.TrimSpace(req.MailAddress)
	return req
}
