package companies

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/storage"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

// ListLocations returns the addresses of a company, active first.
func (s *PostgresService) ListLocations(ctx context.Context, companyID int64) ([]*Location, error) {
	query := `
		SELECT id, company_id, location_name, is_active, created_at, updated_at
		FROM company_locations
		WHERE company_id = $1
		ORDER BY is_active DESC, location_name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	locations := make([]*Location, 0)
	for rows.Next() {
		l := &Location{}
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.LocationName, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}
	return locations, nil
}

// CreateLocation adds an active address to a company.
func (s *PostgresService) CreateLocation(ctx context.Context, companyID int64, req LocationRequest) (*Location, error) {
	req.LocationName = strings.TrimSpace(req.LocationName)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	l := &Location{CompanyID: companyID, LocationName: req.LocationName, IsActive: true}
	query := `
		INSERT INTO company_locations (company_id, location_name, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING id, created_at, updated_at
	`
	if err := s.db.QueryRowContext(ctx, query, companyID, l.LocationName).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, storage.TranslateError(fmt.Errorf("failed to create location: %w", err), "Company")
	}

	audit.Record(ctx, audit.EventTypeDataCreate, audit.ResourceTypeLocation,
		strconv.FormatInt(l.ID, 10), "location created: "+l.LocationName, nil)
	return l, nil
}

// UpdateLocation renames an address.
func (s *PostgresService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) error {
	req.LocationName = strings.TrimSpace(req.LocationName)
	if err := validation.Struct(req); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE company_locations SET location_name = $1, updated_at = $2 WHERE id = $3`,
		req.LocationName, time.Now().UTC(), req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	if err := storage.RequireRow(result, "Location"); err != nil {
		return err
	}

	audit.Record(ctx, audit.EventTypeDataUpdate, audit.ResourceTypeLocation,
		strconv.FormatInt(req.ID, 10), "location renamed to "+req.LocationName, nil)
	return nil
}

// SetLocationActive activates or deactivates an address.
func (s *PostgresService) SetLocationActive(ctx context.Context, req LocationStatusRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}

	active := req.Status == 1
	result, err := s.db.ExecContext(ctx,
		`UPDATE company_locations SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update location status: %w", err)
	}
	if err := storage.RequireRow(result, "Location"); err != nil {
		return err
	}

	audit.Record(ctx, audit.EventTypeDataStatusChange, audit.ResourceTypeLocation,
		strconv.FormatInt(req.ID, 10), "location status changed",
		&audit.ChangeDetails{After: map[string]interface{}{"is_active": active}})
	return nil
}

// DeleteLocation removes an address. Addresses referenced by projects or
// tickets cannot be deleted and should be deactivated instead.
func (s *PostgresService) DeleteLocation(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM company_locations WHERE id = $1`, id)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to delete location: %w", err), "Location")
	}
	if err := storage.RequireRow(result, "Location"); err != nil {
		return err
	}

	audit.Record(ctx, audit.EventTypeDataDelete, audit.ResourceTypeLocation,
		strconv.FormatInt(id, 10), "location deleted", nil)
	return nil
}
