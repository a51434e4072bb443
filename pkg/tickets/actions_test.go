package tickets

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
)

func expectHistory(mock sqlmock.Sqlmock, action Action, from, to Status, at time.Time) {
	mock.ExpectQuery("INSERT INTO ticket_history").
		WithArgs(int64(10), string(action), string(from), string(to), sqlmock.AnyArg(), int64(1), at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(99))
}

func TestAssign(t *testing.T) {
	complaint := fixedNow.Add(-3 * time.Hour)
	assignedAt := fixedNow.Add(-time.Hour)

	t.Run("records assignment without changing status", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusOpen, complaint, nil))
		f.mock.ExpectQuery("SELECT name, is_active FROM users").
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "is_active"}).AddRow("Riya", true))
		f.mock.ExpectExec("UPDATE tickets SET assigned_to").
			WithArgs(int64(5), assignedAt, int64(1), fixedNow, int64(10)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectExec("INSERT INTO ticket_assignments").
			WithArgs(int64(10), int64(5), int64(1), assignedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))
		expectHistory(f.mock, ActionAssign, StatusOpen, StatusOpen, assignedAt)
		f.mock.ExpectCommit()

		entry, err := f.svc.Assign(context.Background(), actor, 10,
			AssignRequest{UserID: 5, AssignedAt: httputil.Timestamp{Time: assignedAt}})
		require.NoError(t, err)
		assert.Equal(t, "Assigned to Riya", entry.Remarks)
		assert.Equal(t, StatusOpen, entry.NewStatus)
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("rejected on resolved ticket", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusResolved, complaint, nil))
		f.mock.ExpectRollback()

		_, err := f.svc.Assign(context.Background(), actor, 10, AssignRequest{UserID: 5})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("time before complaint", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusOpen, complaint, nil))
		f.mock.ExpectRollback()

		_, err := f.svc.Assign(context.Background(), actor, 10,
			AssignRequest{UserID: 5, AssignedAt: httputil.Timestamp{Time: complaint.Add(-time.Minute)}})
		assert.Contains(t, apperr.MessageOf(err), "Assignment time cannot be earlier than")
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("inactive assignee", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusOpen, complaint, nil))
		f.mock.ExpectQuery("SELECT name, is_active FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"name", "is_active"}).AddRow("Riya", false))
		f.mock.ExpectRollback()

		_, err := f.svc.Assign(context.Background(), actor, 10, AssignRequest{UserID: 5})
		assert.Equal(t, "Riya is inactive", apperr.MessageOf(err))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestRespond_DefaultsResponderAndClampsTime(t *testing.T) {
	f := newMockService(t)
	complaint := fixedNow.Add(-time.Hour)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusReopened, complaint, nil))
	f.mock.ExpectQuery("SELECT name, is_active FROM users").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "is_active"}).AddRow("Admin", true))
	f.mock.ExpectExec("SET first_responded_by").
		WithArgs(int64(1), fixedNow, "Looking into it", int64(1), fixedNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectHistory(f.mock, ActionRespond, StatusReopened, StatusReopened, fixedNow)
	f.mock.ExpectCommit()

	_, err := f.svc.Respond(context.Background(), actor, 10, RespondRequest{
		RespondedAt: httputil.Timestamp{Time: fixedNow.Add(24 * time.Hour)},
		Remarks:     " Looking into it ",
	})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRespond_RequiresRemarks(t *testing.T) {
	f := newMockService(t)
	_, err := f.svc.Respond(context.Background(), actor, 10, RespondRequest{Remarks: "   "})
	assert.Contains(t, apperr.FieldsOf(err), "respond_remarks")
}

func TestRootCause(t *testing.T) {
	f := newMockService(t)
	complaint := fixedNow.Add(-time.Hour)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusInProgress, complaint, nil))
	f.mock.ExpectExec("SET root_cause").
		WithArgs("Worn roller", "Vendor", fixedNow, int64(1), fixedNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectHistory(f.mock, ActionRootCause, StatusInProgress, StatusInProgress, fixedNow)
	f.mock.ExpectCommit()

	_, err := f.svc.RootCause(context.Background(), actor, 10, RootCauseRequest{RootCause: "Worn roller", Provider: "Vendor"})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestResolve(t *testing.T) {
	complaint := fixedNow.Add(-5 * time.Hour)
	responded := fixedNow.Add(-2 * time.Hour)

	t.Run("moves to resolved", func(t *testing.T) {
		f := newMockService(t)
		resolvedAt := fixedNow.Add(-time.Hour)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusInProgress, complaint, responded))
		f.mock.ExpectExec("SET status = \\$1, resolved_by").
			WithArgs("Resolved", int64(1), resolvedAt, "Replaced roller", fixedNow, int64(10)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectHistory(f.mock, ActionResolve, StatusInProgress, StatusResolved, resolvedAt)
		f.mock.ExpectCommit()

		entry, err := f.svc.Resolve(context.Background(), actor, 10, ResolveRequest{
			Summary:    "Replaced roller",
			ResolvedAt: httputil.Timestamp{Time: resolvedAt},
		})
		require.NoError(t, err)
		assert.Equal(t, StatusResolved, entry.NewStatus)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TicketTransitionsTotal.WithLabelValues("resolve", "Resolved")))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("before first response", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusOpen, complaint, responded))
		f.mock.ExpectRollback()

		_, err := f.svc.Resolve(context.Background(), actor, 10, ResolveRequest{
			Summary:    "Done",
			ResolvedAt: httputil.Timestamp{Time: responded.Add(-time.Minute)},
		})
		assert.Contains(t, apperr.MessageOf(err), "Resolution time cannot be earlier than")
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("already resolved", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusResolved, complaint, responded))
		f.mock.ExpectRollback()

		_, err := f.svc.Resolve(context.Background(), actor, 10, ResolveRequest{Summary: "Done"})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("missing ticket", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").
			WillReturnRows(sqlmock.NewRows(lockColumns))
		f.mock.ExpectRollback()

		_, err := f.svc.Resolve(context.Background(), actor, 10, ResolveRequest{Summary: "Done"})
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestReopen(t *testing.T) {
	t.Run("from resolved", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusResolved, fixedNow.Add(-time.Hour), nil))
		f.mock.ExpectExec("SET status = \\$1, resolved_by = NULL").
			WithArgs("Reopened", int64(1), fixedNow, int64(10)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectHistory(f.mock, ActionReopen, StatusResolved, StatusReopened, fixedNow)
		f.mock.ExpectCommit()

		entry, err := f.svc.Reopen(context.Background(), actor, 10, ReopenRequest{Remarks: "Still jamming"})
		require.NoError(t, err)
		assert.Equal(t, "Still jamming", entry.Remarks)
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("requires remarks", func(t *testing.T) {
		f := newMockService(t)
		_, err := f.svc.Reopen(context.Background(), actor, 10, ReopenRequest{})
		assert.Contains(t, apperr.FieldsOf(err), "remarks")
	})

	t.Run("only from resolved", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusOpen, fixedNow.Add(-time.Hour), nil))
		f.mock.ExpectRollback()

		_, err := f.svc.Reopen(context.Background(), actor, 10, ReopenRequest{Remarks: "again"})
		assert.Equal(t, "Only resolved tickets can be reopened", apperr.MessageOf(err))
	})
}

func TestChangeStatus(t *testing.T) {
	f := newMockService(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusOpen, fixedNow.Add(-time.Hour), nil))
	f.mock.ExpectExec("UPDATE tickets SET status").
		WithArgs("In Progress", int64(1), fixedNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectHistory(f.mock, ActionStatusChange, StatusOpen, StatusInProgress, fixedNow)
	f.mock.ExpectCommit()

	_, err := f.svc.ChangeStatus(context.Background(), actor, 10, StatusRequest{Status: StatusInProgress})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
}
