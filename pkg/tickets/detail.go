package tickets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/helpdesk/pkg/attachments"
	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

// AddComment adds a comment, with an optional attachment, to a ticket the
// actor can see. A future commented_at is clamped to now.
func (s *PostgresService) AddComment(ctx context.Context, actor Actor, ticketID int64, req CommentRequest) (*Comment, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockTicket(ctx, tx, actor, ticketID); err != nil {
		return nil, err
	}

	c := &Comment{
		TicketID:    ticketID,
		AuthorID:    actor.UserID,
		Text:        req.Text,
		CommentedAt: req.CommentedAt.OrNow(now),
		Attachments: []*attachments.Attachment{},
	}
	query := `
		INSERT INTO ticket_comments (ticket_id, author_id, text, commented_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = tx.QueryRowContext(ctx, query, ticketID, actor.UserID, c.Text, c.CommentedAt).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	if !req.Attachment.Empty() {
		owner := attachments.Owner{Kind: attachments.OwnerComment, ID: c.ID}
		a, err := s.attachments.Save(ctx, tx, owner, req.Attachment, actor.UserID)
		if err != nil {
			return nil, err
		}
		c.Attachments = append(c.Attachments, a)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	audit.Record(ctx, audit.EventTypeDataCreate, audit.ResourceTypeTicket,
		strconv.FormatInt(ticketID, 10), "comment added", nil)
	return c, nil
}

// ListHistory returns the ticket's transitions in the order they happened.
func (s *PostgresService) ListHistory(ctx context.Context, ticketID int64) ([]*HistoryEntry, error) {
	query := `
		SELECT h.id, h.ticket_id, h.action, h.old_status, h.new_status, h.remarks,
		       h.changed_by, COALESCE(u.name, ''), h.changed_at
		FROM ticket_history h
		LEFT JOIN users u ON u.id = h.changed_by
		WHERE h.ticket_id = $1
		ORDER BY h.changed_at ASC, h.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket history: %w", err)
	}
	defer rows.Close()

	history := make([]*HistoryEntry, 0)
	for rows.Next() {
		h := &HistoryEntry{}
		var action, oldStatus, newStatus string
		if err := rows.Scan(&h.ID, &h.TicketID, &action, &oldStatus, &newStatus, &h.Remarks,
			&h.ChangedBy, &h.ChangedByName, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket history: %w", err)
		}
		h.Action, h.OldStatus, h.NewStatus = Action(action), Status(oldStatus), Status(newStatus)
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket history: %w", err)
	}
	return history, nil
}

// ListAssignments returns every assignment of the ticket, newest first.
func (s *PostgresService) ListAssignments(ctx context.Context, ticketID int64) ([]*Assignment, error) {
	query := `
		SELECT a.id, a.assigned_to, COALESCE(ut.name, ''), a.assigned_by, COALESCE(ub.name, ''), a.assigned_at
		FROM ticket_assignments a
		LEFT JOIN users ut ON ut.id = a.assigned_to
		LEFT JOIN users ub ON ub.id = a.assigned_by
		WHERE a.ticket_id = $1
		ORDER BY a.assigned_at DESC, a.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket assignments: %w", err)
	}
	defer rows.Close()

	out := make([]*Assignment, 0)
	for rows.Next() {
		a := &Assignment{}
		if err := rows.Scan(&a.ID, &a.AssignedTo, &a.AssignedToName, &a.AssignedBy, &a.AssignedByName, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket assignments: %w", err)
	}
	return out, nil
}

// ListComments returns the ticket's comments with their attachments, oldest
// first.
func (s *PostgresService) ListComments(ctx context.Context, ticketID int64) ([]*Comment, error) {
	query := `
		SELECT c.id, c.ticket_id, c.author_id, COALESCE(u.name, ''), c.text, c.commented_at, c.created_at
		FROM ticket_comments c
		LEFT JOIN users u ON u.id = c.author_id
		WHERE c.ticket_id = $1
		ORDER BY c.commented_at ASC, c.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*Comment, 0)
	var commentIDs []int64
	for rows.Next() {
		c := &Comment{Attachments: []*attachments.Attachment{}}
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.AuthorName, &c.Text, &c.CommentedAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
		commentIDs = append(commentIDs, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	rows.Close()

	files, err := s.attachments.ListByOwners(ctx, attachments.OwnerComment, commentIDs)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		if list, ok := files[c.ID]; ok {
			c.Attachments = list
		}
	}
	return comments, nil
}

// GetDetail returns the ticket with its history, assignments, comments and
// attachments. The parts are loaded concurrently once the ticket is known
// to be visible.
func (s *PostgresService) GetDetail(ctx context.Context, actor Actor, id int64) (*Detail, error) {
	t, err := s.GetTicket(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	d := &Detail{Ticket: t}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.History, err = s.ListHistory(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		d.Assignments, err = s.ListAssignments(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		d.Comments, err = s.ListComments(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		d.Attachments, err = s.attachments.List(gctx, attachments.Owner{Kind: attachments.OwnerTicket, ID: id})
		return err
	})
	g.Go(func() error {
		err := s.db.QueryRowContext(gctx, `SELECT COALESCE((SELECT is_internal FROM companies WHERE id = $1), FALSE)`,
			actor.CompanyID).Scan(&d.IsInternal)
		if err != nil {
			return fmt.Errorf("failed to check company: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.Activity = ActivityLog(d.Comments, d.History)
	d.ResolutionHistory = ResolutionHistory(d.History)
	d.ReopenHistory = ReopenHistory(d.History)
	return d, nil
}
