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
	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

// stepFunc applies an action's field updates inside the transaction and
// returns the event time and history remarks.
type stepFunc func(tx *sql.Tx, lt *lockedTicket, to Status, now time.Time) (time.Time, string, error)

// apply runs one workflow action: lock the ticket, compute the next status,
// write the action's fields and append a history entry.
func (s *PostgresService) apply(ctx context.Context, actor Actor, id int64, action Action,
	next func(from Status) (Status, error), step stepFunc) (*HistoryEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lt, err := lockTicket(ctx, tx, actor, id)
	if err != nil {
		return nil, err
	}
	to, err := next(lt.Status)
	if err != nil {
		return nil, err
	}
	now := s.now()
	at, remarks, err := step(tx, lt, to, now)
	if err != nil {
		return nil, err
	}

	entry := &HistoryEntry{
		TicketID:  id,
		Action:    action,
		OldStatus: lt.Status,
		NewStatus: to,
		Remarks:   remarks,
		ChangedBy: actor.UserID,
		ChangedAt: at,
	}
	if err := appendHistory(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.countTransition(action, to)
	audit.Record(ctx, audit.EventTypeTicketTransition, audit.ResourceTypeTicket,
		strconv.FormatInt(id, 10), fmt.Sprintf("ticket %s", action),
		&audit.ChangeDetails{
			Before: map[string]interface{}{"status": string(lt.Status)},
			After:  map[string]interface{}{"status": string(to)},
		})
	return entry, nil
}

func byAction(action Action) func(Status) (Status, error) {
	return func(from Status) (Status, error) { return Next(action, from) }
}

func exec(ctx context.Context, tx *sql.Tx, what, query string, args ...interface{}) error {
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return nil
}

// Assign hands the ticket to an active user and records the assignment.
func (s *PostgresService) Assign(ctx context.Context, actor Actor, id int64, req AssignRequest) (*HistoryEntry, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, ActionAssign, byAction(ActionAssign),
		func(tx *sql.Tx, lt *lockedTicket, _ Status, now time.Time) (time.Time, string, error) {
			at, err := EventTime(req.AssignedAt.Time, lt.ComplaintAt, now, "Assignment time")
			if err != nil {
				return time.Time{}, "", err
			}
			name, err := activeUserName(ctx, tx, req.UserID)
			if err != nil {
				return time.Time{}, "", err
			}
			err = exec(ctx, tx, "assign ticket",
				`UPDATE tickets SET assigned_to = $1, assigned_at = $2, updated_by = $3, updated_at = $4 WHERE id = $5`,
				req.UserID, at, actor.UserID, now, lt.ID)
			if err != nil {
				return time.Time{}, "", err
			}
			err = exec(ctx, tx, "record assignment",
				`INSERT INTO ticket_assignments (ticket_id, assigned_to, assigned_by, assigned_at) VALUES ($1, $2, $3, $4)`,
				lt.ID, req.UserID, actor.UserID, at)
			if err != nil {
				return time.Time{}, "", err
			}
			return at, "Assigned to " + name, nil
		})
}

// Respond records the first response. RespondedBy defaults to the actor.
func (s *PostgresService) Respond(ctx context.Context, actor Actor, id int64, req RespondRequest) (*HistoryEntry, error) {
	req.Remarks = strings.TrimSpace(req.Remarks)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.RespondedBy == 0 {
		req.RespondedBy = actor.UserID
	}
	return s.apply(ctx, actor, id, ActionRespond, byAction(ActionRespond),
		func(tx *sql.Tx, lt *lockedTicket, _ Status, now time.Time) (time.Time, string, error) {
			at, err := EventTime(req.RespondedAt.Time, lt.ComplaintAt, now, "Response time")
			if err != nil {
				return time.Time{}, "", err
			}
			if _, err := activeUserName(ctx, tx, req.RespondedBy); err != nil {
				return time.Time{}, "", err
			}
			err = exec(ctx, tx, "save response", `
				UPDATE tickets
				SET first_responded_by = $1, first_responded_at = $2, first_respond_remarks = $3,
				    updated_by = $4, updated_at = $5
				WHERE id = $6`,
				req.RespondedBy, at, req.Remarks, actor.UserID, now, lt.ID)
			return at, req.Remarks, err
		})
}

// RootCause records the root cause analysis.
func (s *PostgresService) RootCause(ctx context.Context, actor Actor, id int64, req RootCauseRequest) (*HistoryEntry, error) {
	req.RootCause = strings.TrimSpace(req.RootCause)
	req.Provider = strings.TrimSpace(req.Provider)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, ActionRootCause, byAction(ActionRootCause),
		func(tx *sql.Tx, lt *lockedTicket, _ Status, now time.Time) (time.Time, string, error) {
			at, err := EventTime(req.ProvidedAt.Time, lt.ComplaintAt, now, "Root cause time")
			if err != nil {
				return time.Time{}, "", err
			}
			err = exec(ctx, tx, "save root cause", `
				UPDATE tickets
				SET root_cause = $1, root_cause_provider = $2, root_cause_provided_at = $3,
				    updated_by = $4, updated_at = $5
				WHERE id = $6`,
				req.RootCause, req.Provider, at, actor.UserID, now, lt.ID)
			return at, req.RootCause, err
		})
}

// Resolve closes out the ticket. The resolution time may not precede the
// complaint or the first response.
func (s *PostgresService) Resolve(ctx context.Context, actor Actor, id int64, req ResolveRequest) (*HistoryEntry, error) {
	req.Summary = strings.TrimSpace(req.Summary)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, ActionResolve, byAction(ActionResolve),
		func(tx *sql.Tx, lt *lockedTicket, to Status, now time.Time) (time.Time, string, error) {
			floor := ResolveFloor(lt.ComplaintAt, lt.FirstRespondedAt)
			at, err := EventTime(req.ResolvedAt.Time, floor, now, "Resolution time")
			if err != nil {
				return time.Time{}, "", err
			}
			err = exec(ctx, tx, "resolve ticket", `
				UPDATE tickets
				SET status = $1, resolved_by = $2, resolved_at = $3, resolution_summary = $4,
				    updated_by = $2, updated_at = $5
				WHERE id = $6`,
				string(to), actor.UserID, at, req.Summary, now, lt.ID)
			return at, req.Summary, err
		})
}

// Reopen returns a resolved ticket to work. The previous resolution stays
// in history.
func (s *PostgresService) Reopen(ctx context.Context, actor Actor, id int64, req ReopenRequest) (*HistoryEntry, error) {
	req.Remarks = strings.TrimSpace(req.Remarks)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, ActionReopen, byAction(ActionReopen),
		func(tx *sql.Tx, lt *lockedTicket, to Status, now time.Time) (time.Time, string, error) {
			err := exec(ctx, tx, "reopen ticket", `
				UPDATE tickets
				SET status = $1, resolved_by = NULL, resolved_at = NULL, resolution_summary = '',
				    updated_by = $2, updated_at = $3
				WHERE id = $4`,
				string(to), actor.UserID, now, lt.ID)
			return now, req.Remarks, err
		})
}

// ChangeStatus applies a manual status change. Only Open to In Progress is
// accepted.
func (s *PostgresService) ChangeStatus(ctx context.Context, actor Actor, id int64, req StatusRequest) (*HistoryEntry, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	next := func(from Status) (Status, error) { return NextManual(from, req.Status) }
	return s.apply(ctx, actor, id, ActionStatusChange, next,
		func(tx *sql.Tx, lt *lockedTicket, to Status, now time.Time) (time.Time, string, error) {
			err := exec(ctx, tx, "change ticket status",
				`UPDATE tickets SET status = $1, updated_by = $2, updated_at = $3 WHERE id = $4`,
				string(to), actor.UserID, now, lt.ID)
			return now, "Status changed to " + string(to), err
		})
}

func activeUserName(ctx context.Context, tx *sql.Tx, userID int64) (string, error) {
	var (
		name   string
		active bool
	)
	err := tx.QueryRowContext(ctx, `SELECT name, is_active FROM users WHERE id = $1`, userID).Scan(&name, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound("User")
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if !active {
		return "", apperr.Validation("%s is inactive", name)
	}
	return name, nil
}
