package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

// DBLogger writes audit events to the audit_events table and reads them back.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger. The table is
// created by the schema migrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

const eventColumns = `
	id, timestamp, event_type, status,
	user_id, user_email, company_id,
	resource_type, resource_id,
	ip_address, user_agent, request_id,
	method, path, status_code,
	message, error_message, metadata, changes`

// Log logs an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON, changesJSON []byte
	var err error

	if len(event.Metadata) > 0 {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}
	if event.Changes != nil {
		changesJSON, err = json.Marshal(event.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			timestamp, event_type, status,
			user_id, user_email, company_id,
			resource_type, resource_id,
			ip_address, user_agent, request_id,
			method, path, status_code,
			message, error_message, metadata, changes
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8,
			$9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18
		) RETURNING id
	`

	err = l.db.QueryRowContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		event.UserID, event.UserEmail, event.CompanyID,
		event.ResourceType, event.ResourceID,
		event.IPAddress, event.UserAgent, event.RequestID,
		event.Method, event.Path, event.StatusCode,
		event.Message, event.ErrorMessage, metadataJSON, changesJSON,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Search searches audit events based on filters, newest first.
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	query := "SELECT " + eventColumns + " FROM audit_events WHERE 1=1"

	args := []interface{}{}
	argCount := 1
	add := func(clause string, value interface{}) {
		query += fmt.Sprintf(clause, argCount)
		args = append(args, value)
		argCount++
	}

	if filter.StartTime != nil {
		add(" AND timestamp >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		add(" AND timestamp <= $%d", *filter.EndTime)
	}
	if filter.UserID != nil {
		add(" AND user_id = $%d", *filter.UserID)
	}
	if filter.CompanyID != nil {
		add(" AND company_id = $%d", *filter.CompanyID)
	}
	if len(filter.EventTypes) > 0 {
		types := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			types[i] = string(et)
		}
		add(" AND event_type = ANY($%d)", pq.Array(types))
	}
	if filter.Status != nil {
		add(" AND status = $%d", string(*filter.Status))
	}
	if filter.ResourceType != "" {
		add(" AND resource_type = $%d", string(filter.ResourceType))
	}
	if filter.ResourceID != "" {
		add(" AND resource_id = $%d", filter.ResourceID)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		add(" LIMIT $%d", filter.Limit)
	}
	if filter.Offset > 0 {
		add(" OFFSET $%d", filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// Get retrieves a specific audit event by ID
func (l *DBLogger) Get(ctx context.Context, id int64) (*Event, error) {
	row := l.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM audit_events WHERE id = $1", id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Audit event")
	}
	return event, err
}

// Cleanup removes events older than retention and returns how many went.
func (l *DBLogger) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result, err := l.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit events: %w", err)
	}
	return result.RowsAffected()
}

// Close is a no-op; the database connection is shared.
func (l *DBLogger) Close() error {
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (*Event, error) {
	event := &Event{Metadata: make(map[string]interface{})}

	var (
		userID, companyID                                  sql.NullInt64
		email, resType, resID, ip, ua, reqID, method, path sql.NullString
		message, errMessage                                sql.NullString
		statusCode                                         sql.NullInt64
		metadataJSON, changesJSON                          []byte
	)

	err := s.Scan(
		&event.ID, &event.Timestamp, &event.EventType, &event.Status,
		&userID, &email, &companyID,
		&resType, &resID,
		&ip, &ua, &reqID,
		&method, &path, &statusCode,
		&message, &errMessage, &metadataJSON, &changesJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	if userID.Valid {
		event.UserID = &userID.Int64
	}
	if companyID.Valid {
		event.CompanyID = &companyID.Int64
	}
	event.UserEmail = email.String
	event.ResourceType = ResourceType(resType.String)
	event.ResourceID = resID.String
	event.IPAddress = ip.String
	event.UserAgent = ua.String
	event.RequestID = reqID.String
	event.Method = method.String
	event.Path = path.String
	event.StatusCode = int(statusCode.Int64)
	event.Message = message.String
	event.ErrorMessage = errMessage.String

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if len(changesJSON) > 0 {
		event.Changes = &ChangeDetails{}
		if err := json.Unmarshal(changesJSON, event.Changes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
		}
	}
	return event, nil
}
