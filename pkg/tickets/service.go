package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/attachments"
	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/ids"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/storage"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

// PostgresService stores tickets and their workflow history in PostgreSQL.
type PostgresService struct {
	db          *sql.DB
	attachments *attachments.Service
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewPostgresService creates a new PostgresService. metrics may be nil.
func NewPostgresService(db *sql.DB, files *attachments.Service, metrics *observability.Metrics) *PostgresService {
	return &PostgresService{
		db:          db,
		attachments: files,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// VisibleClause limits rows to tickets the actor may see: everything for
// internal companies, otherwise tickets of the actor's company or of
// projects the actor is assigned to. It expects $1 = company id and
// $2 = user id, and the aliases t (tickets) and p (projects).
const VisibleClause = `(EXISTS (SELECT 1 FROM companies v WHERE v.id = $1 AND v.is_internal)
		OR p.company_id = $1
		OR EXISTS (SELECT 1 FROM user_projects up WHERE up.project_id = t.project_id AND up.user_id = $2))`

const ticketSelect = `
	SELECT t.id, t.ticket_uid, t.title, t.description,
	       t.project_id, COALESCE(p.name, ''), t.location_id, COALESCE(l.location_name, ''),
	       p.company_id, COALESCE(c.name, ''),
	       t.channel, t.complaint_by, t.complaint_at, t.status,
	       t.assigned_to, COALESCE(ua.name, ''), t.assigned_at,
	       t.first_responded_by, COALESCE(ur.name, ''), t.first_responded_at, t.first_respond_remarks,
	       t.root_cause, t.root_cause_provider, t.root_cause_provided_at,
	       t.resolved_by, COALESCE(uz.name, ''), t.resolved_at, t.resolution_summary,
	       t.created_by, COALESCE(uc.name, ''), t.created_at, t.updated_at
	FROM tickets t
	JOIN projects p ON p.id = t.project_id
	LEFT JOIN companies c ON c.id = p.company_id
	LEFT JOIN company_locations l ON l.id = t.location_id
	LEFT JOIN users ua ON ua.id = t.assigned_to
	LEFT JOIN users ur ON ur.id = t.first_responded_by
	LEFT JOIN users uz ON uz.id = t.resolved_by
	LEFT JOIN users uc ON uc.id = t.created_by`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(s scanner) (*Ticket, error) {
	t := &Ticket{}
	var (
		status                               string
		assignedTo, respondedBy, resolvedBy  sql.NullInt64
		assignedAt, respondedAt, rootCauseAt sql.NullTime
		resolvedAt                           sql.NullTime
	)
	err := s.Scan(&t.ID, &t.TicketUID, &t.Title, &t.Description,
		&t.ProjectID, &t.ProjectName, &t.LocationID, &t.LocationName,
		&t.CompanyID, &t.CompanyName,
		&t.Channel, &t.ComplaintBy, &t.ComplaintAt, &status,
		&assignedTo, &t.AssignedToName, &assignedAt,
		&respondedBy, &t.RespondedByName, &respondedAt, &t.FirstRespondRemarks,
		&t.RootCause, &t.RootCauseProvider, &rootCauseAt,
		&resolvedBy, &t.ResolvedByName, &resolvedAt, &t.ResolutionSummary,
		&t.CreatedBy, &t.CreatedByName, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.AssignedTo = int64Ptr(assignedTo)
	t.AssignedAt = timePtr(assignedAt)
	t.FirstRespondedBy = int64Ptr(respondedBy)
	t.FirstRespondedAt = timePtr(respondedAt)
	t.RootCauseProvidedAt = timePtr(rootCauseAt)
	t.ResolvedBy = int64Ptr(resolvedBy)
	t.ResolvedAt = timePtr(resolvedAt)
	return t, nil
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// ListTickets returns the tickets visible to filter.Actor that match every
// set field of filter, newest first.
func (s *PostgresService) ListTickets(ctx context.Context, filter Filter) ([]*Ticket, error) {
	query := ticketSelect + `
		WHERE ` + VisibleClause + `
		  AND ($3 = '' OR t.status = $3)
		  AND ($4 = 0 OR t.project_id = $4)
		  AND ($5 = 0 OR p.company_id = $5)
		  AND ($6 = 0 OR t.location_id = $6)
		  AND ($7 = 0 OR t.id = $7)
		  AND ($8 = 0 OR $8 IN (t.created_by, t.assigned_to, t.first_responded_by, t.resolved_by)
		       OR EXISTS (SELECT 1 FROM ticket_history hi WHERE hi.ticket_id = t.id AND hi.changed_by = $8))
		  AND ($9 = 0 OR t.assigned_to = $9)
		  AND ($10 = 0 OR t.resolved_by = $10)
		  AND ($11 = '' OR t.complaint_by ILIKE '%' || $11 || '%')
		  AND ($12 = '' OR t.channel = $12)
		  AND ($13::TIMESTAMPTZ IS NULL OR t.complaint_at >= $13)
		  AND ($14::TIMESTAMPTZ IS NULL OR t.complaint_at < $14)
		ORDER BY t.created_at DESC, t.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query,
		filter.Actor.CompanyID, filter.Actor.UserID, string(filter.Status), filter.ProjectID, filter.CompanyID,
		filter.LocationID, filter.TicketID, filter.InvolvedUserID, filter.AssignedToID, filter.ResolvedByID,
		filter.ComplaintBy, filter.Channel, nullTime(filter.From), nullTime(filter.To))
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	return tickets, nil
}

// GetTicket returns a ticket visible to actor. Tickets outside the actor's
// scope are reported as not found.
func (s *PostgresService) GetTicket(ctx context.Context, actor Actor, id int64) (*Ticket, error) {
	query := ticketSelect + ` WHERE t.id = $3 AND ` + VisibleClause
	t, err := scanTicket(s.db.QueryRowContext(ctx, query, actor.CompanyID, actor.UserID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Ticket")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return t, nil
}

// CreateTicket opens a ticket. A complaint time in the future is clamped to
// now. The project and location must still be available to the actor.
func (s *PostgresService) CreateTicket(ctx context.Context, actor Actor, req TicketRequest) (*Ticket, error) {
	req = prepare(req)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkAccess(ctx, tx, actor, req.ProjectID, req.LocationID); err != nil {
		return nil, err
	}

	t := &Ticket{
		TicketUID:   "TKT-" + ids.New(),
		Title:       req.Title,
		Description: req.Description,
		ProjectID:   req.ProjectID,
		LocationID:  req.LocationID,
		Channel:     req.Channel,
		ComplaintBy: req.ComplaintBy,
		ComplaintAt: req.ComplaintTime.OrNow(now),
		Status:      StatusOpen,
		CreatedBy:   actor.UserID,
	}
	query := `
		INSERT INTO tickets (ticket_uid, title, description, project_id, location_id, channel,
		                     complaint_by, complaint_at, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query, t.TicketUID, t.Title, t.Description, t.ProjectID, t.LocationID,
		t.Channel, t.ComplaintBy, t.ComplaintAt, string(t.Status), actor.UserID, now).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, storage.TranslateError(fmt.Errorf("failed to create ticket: %w", err), "Ticket")
	}

	entry := &HistoryEntry{
		TicketID:  t.ID,
		Action:    ActionCreate,
		NewStatus: StatusOpen,
		Remarks:   "Ticket created",
		ChangedBy: actor.UserID,
		ChangedAt: now,
	}
	if err := appendHistory(ctx, tx, entry); err != nil {
		return nil, err
	}
	if !req.Attachment.Empty() {
		owner := attachments.Owner{Kind: attachments.OwnerTicket, ID: t.ID}
		if _, err := s.attachments.Save(ctx, tx, owner, req.Attachment, actor.UserID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.countTransition(ActionCreate, StatusOpen)
	audit.Record(ctx, audit.EventTypeDataCreate, audit.ResourceTypeTicket,
		strconv.FormatInt(t.ID, 10), "ticket created: "+t.TicketUID, nil)
	return t, nil
}

// UpdateTicket replaces the editable fields of a ticket. A new attachment
// is added when the request carries file data.
func (s *PostgresService) UpdateTicket(ctx context.Context, actor Actor, req UpdateTicketRequest) error {
	req.TicketRequest = prepare(req.TicketRequest)
	if err := validation.Struct(req); err != nil {
		return err
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lt, err := lockTicket(ctx, tx, actor, req.ID)
	if err != nil {
		return err
	}
	if err := checkAccess(ctx, tx, actor, req.ProjectID, req.LocationID); err != nil {
		return err
	}
	complaintAt := req.ComplaintTime.OrNow(now)
	if lt.FirstEventAt != nil && complaintAt.After(*lt.FirstEventAt) {
		return apperr.Validation("Complaint time cannot be later than %s", lt.FirstEventAt.UTC().Format("2006-01-02 15:04"))
	}

	query := `
		UPDATE tickets
		SET title = $1, description = $2, project_id = $3, location_id = $4, channel = $5,
		    complaint_by = $6, complaint_at = $7, updated_by = $8, updated_at = $9
		WHERE id = $10
	`
	result, err := tx.ExecContext(ctx, query, req.Title, req.Description, req.ProjectID, req.LocationID,
		req.Channel, req.ComplaintBy, complaintAt, actor.UserID, now, req.ID)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if err := storage.RequireRow(result, "Ticket"); err != nil {
		return err
	}
	if !req.Attachment.Empty() {
		owner := attachments.Owner{Kind: attachments.OwnerTicket, ID: req.ID}
		if _, err := s.attachments.Save(ctx, tx, owner, req.Attachment, actor.UserID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	audit.Record(ctx, audit.EventTypeDataUpdate, audit.ResourceTypeTicket,
		strconv.FormatInt(req.ID, 10), "ticket updated: "+req.Title, nil)
	return nil
}

// Attachment returns attachment metadata when the attachment belongs to a
// ticket, or a comment on a ticket, that actor can see.
func (s *PostgresService) Attachment(ctx context.Context, actor Actor, id int64) (*attachments.Attachment, error) {
	query := `
		SELECT COALESCE(a.ticket_id, tc.ticket_id)
		FROM attachments a
		LEFT JOIN ticket_comments tc ON tc.id = a.comment_id
		WHERE a.id = $1 AND (a.ticket_id IS NOT NULL OR a.comment_id IS NOT NULL)
	`
	var ticketID int64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Attachment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound("Attachment")
		}
		return nil, err
	}
	return s.attachments.Get(ctx, id)
}

func prepare(req TicketRequest) TicketRequest {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.ComplaintBy = strings.TrimSpace(req.ComplaintBy)
	return req
}

// checkAccess verifies the project is active and assigned to the actor (or
// the actor is internal) and the location is an active address of that
// project.
func checkAccess(ctx context.Context, tx *sql.Tx, actor Actor, projectID, locationID int64) error {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM projects p
			JOIN project_locations pl ON pl.project_id = p.id AND pl.location_id = $4
			JOIN company_locations l ON l.id = pl.location_id AND l.is_active
			WHERE p.id = $3 AND p.is_active
			  AND (EXISTS (SELECT 1 FROM companies v WHERE v.id = $1 AND v.is_internal)
			       OR EXISTS (SELECT 1 FROM user_projects up WHERE up.project_id = p.id AND up.user_id = $2))
		)
	`
	var ok bool
	if err := tx.QueryRowContext(ctx, query, actor.CompanyID, actor.UserID, projectID, locationID).Scan(&ok); err != nil {
		return fmt.Errorf("failed to check ticket access: %w", err)
	}
	if !ok {
		return apperr.Stale()
	}
	return nil
}

// lockedTicket is the workflow state read under a row lock.
type lockedTicket struct {
	ID               int64
	Status           Status
	ProjectID        int64
	ComplaintAt      time.Time
	FirstRespondedAt *time.Time
	// FirstEventAt is the earliest of the response, root cause and
	// resolution times; nil when none is recorded.
	FirstEventAt *time.Time
}

func lockTicket(ctx context.Context, tx *sql.Tx, actor Actor, id int64) (*lockedTicket, error) {
	query := `
		SELECT t.id, t.status, t.project_id, t.complaint_at, t.first_responded_at,
		       LEAST(t.first_responded_at, t.root_cause_provided_at, t.resolved_at)
		FROM tickets t
		JOIN projects p ON p.id = t.project_id
		WHERE t.id = $3 AND ` + VisibleClause + `
		FOR UPDATE OF t
	`
	lt := &lockedTicket{}
	var (
		status     string
		responded  sql.NullTime
		firstEvent sql.NullTime
	)
	err := tx.QueryRowContext(ctx, query, actor.CompanyID, actor.UserID, id).
		Scan(&lt.ID, &status, &lt.ProjectID, &lt.ComplaintAt, &responded, &firstEvent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Ticket")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock ticket: %w", err)
	}
	lt.Status = Status(status)
	lt.FirstRespondedAt = timePtr(responded)
	lt.FirstEventAt = timePtr(firstEvent)
	return lt, nil
}

func appendHistory(ctx context.Context, tx *sql.Tx, e *HistoryEntry) error {
	query := `
		INSERT INTO ticket_history (ticket_id, action, old_status, new_status, remarks, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := tx.QueryRowContext(ctx, query, e.TicketID, string(e.Action), string(e.OldStatus), string(e.NewStatus),
		e.Remarks, e.ChangedBy, e.ChangedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to record ticket history: %w", err)
	}
	return nil
}

func (s *PostgresService) countTransition(action Action, to Status) {
	if s.metrics != nil {
		s.metrics.TicketTransitionsTotal.WithLabelValues(string(action), string(to)).Inc()
	}
}

// CountByStatus returns the number of tickets per status.
func (s *PostgresService) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int64, len(Statuses))
	for _, st := range Statuses {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan ticket count: %w", err)
		}
		counts[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket counts: %w", err)
	}
	return counts, nil
}
