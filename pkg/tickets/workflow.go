package tickets

import (
	"sort"
	"time"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

// Next returns the status a ticket in from moves to when action is applied.
// Assign, respond and root cause keep the status but are not allowed on a
// resolved or closed ticket.
func Next(action Action, from Status) (Status, error) {
	switch action {
	case ActionAssign, ActionRespond, ActionRootCause:
		if from == StatusResolved || from == StatusClosed {
			return "", apperr.Validation("Ticket is %s. Reopen it before making changes.", from)
		}
		return from, nil
	case ActionResolve:
		switch from {
		case StatusOpen, StatusInProgress, StatusReopened:
			return StatusResolved, nil
		}
		return "", apperr.Validation("A %s ticket cannot be resolved", from)
	case ActionReopen:
		if from != StatusResolved {
			return "", apperr.Validation("Only resolved tickets can be reopened")
		}
		return StatusReopened, nil
	}
	return "", apperr.Validation("unknown ticket action %q", action)
}

// NextManual validates a status picked by hand. Only Open to In Progress is
// allowed; every other change goes through a workflow action.
func NextManual(from, to Status) (Status, error) {
	if from == StatusOpen && to == StatusInProgress {
		return to, nil
	}
	return "", apperr.Validation("Cannot change status from %s to %s", from, to)
}

// EventTime clamps a client supplied time to now and rejects times earlier
// than floor. label names the field in the error.
func EventTime(requested, floor, now time.Time, label string) (time.Time, error) {
	at := requested
	if at.IsZero() || at.After(now) {
		at = now
	}
	if at.Before(floor) {
		return time.Time{}, apperr.Validation("%s cannot be earlier than %s", label, floor.UTC().Format("2006-01-02 15:04"))
	}
	return at, nil
}

// ResolveFloor is the earliest allowed resolution time: the later of the
// complaint and the first response.
func ResolveFloor(complaintAt time.Time, firstResponse *time.Time) time.Time {
	if firstResponse != nil && firstResponse.After(complaintAt) {
		return *firstResponse
	}
	return complaintAt
}

// ResolutionHistory returns the resolved entries, newest first.
func ResolutionHistory(history []*HistoryEntry) []*HistoryEntry {
	return filterHistory(history, StatusResolved)
}

// ReopenHistory returns the reopened entries, newest first.
func ReopenHistory(history []*HistoryEntry) []*HistoryEntry {
	return filterHistory(history, StatusReopened)
}

func filterHistory(history []*HistoryEntry, status Status) []*HistoryEntry {
	out := make([]*HistoryEntry, 0)
	for _, h := range history {
		if h.NewStatus == status && h.OldStatus != status {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChangedAt.After(out[j].ChangedAt) })
	return out
}

// ActivityKind tags an activity log entry.
type ActivityKind string

const (
	ActivityComment ActivityKind = "comment"
	ActivityStatus  ActivityKind = "status"
)

// Activity is one row of the ticket timeline.
type Activity struct {
	Kind      ActivityKind  `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Comment   *Comment      `json:"comment,omitempty"`
	Status    *HistoryEntry `json:"status,omitempty"`
}

// ActivityLog merges comments with resolve and reopen transitions, newest
// first. Comments use their commented_at time.
func ActivityLog(comments []*Comment, history []*HistoryEntry) []Activity {
	out := make([]Activity, 0, len(comments))
	for _, c := range comments {
		ts := c.CommentedAt
		if ts.IsZero() {
			ts = c.CreatedAt
		}
		out = append(out, Activity{Kind: ActivityComment, Timestamp: ts, Comment: c})
	}
	for _, h := range history {
		if h.NewStatus != h.OldStatus && (h.NewStatus == StatusResolved || h.NewStatus == StatusReopened) {
			out = append(out, Activity{Kind: ActivityStatus, Timestamp: h.ChangedAt, Status: h})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}
