package tickets

import (
	"context"
	"database/sql/driver"
	"encoding/base64"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/attachments"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/storage"
)

var fixedNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *PostgresService
	files   *attachments.Service
	blobs   storage.BlobStore
	mock    sqlmock.Sqlmock
	metrics *observability.Metrics
}

func newMockService(t *testing.T) *fixture {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	blobs, err := storage.NewFileSystemStorage(t.TempDir())
	require.NoError(t, err)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	files := attachments.NewService(db, blobs, metrics)

	svc := NewPostgresService(db, files, metrics)
	svc.now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, files: files, blobs: blobs, mock: mock, metrics: metrics}
}

var actor = Actor{UserID: 1, CompanyID: 2}

var ticketRowColumns = []string{
	"id", "ticket_uid", "title", "description",
	"project_id", "project_name", "location_id", "location_name",
	"company_id", "company_name",
	"channel", "complaint_by", "complaint_at", "status",
	"assigned_to", "assigned_to_name", "assigned_at",
	"first_responded_by", "responded_by_name", "first_responded_at", "first_respond_remarks",
	"root_cause", "root_cause_provider", "root_cause_provided_at",
	"resolved_by", "resolved_by_name", "resolved_at", "resolution_summary",
	"created_by", "created_by_name", "created_at", "updated_at",
}

func ticketRows(id int64, status Status, complaint time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(ticketRowColumns).AddRow(
		id, "TKT-01J", "Printer down", "Jammed",
		3, "Rollout", 4, "HQ",
		2, "Acme",
		ChannelCall, "Sam", complaint, string(status),
		nil, "", nil,
		nil, "", nil, "",
		"", "", nil,
		nil, "", nil, "",
		1, "Admin", complaint, complaint,
	)
}

var lockColumns = []string{"id", "status", "project_id", "complaint_at", "first_responded_at", "least"}

// lockRows returns a locked ticket whose earliest event is its response.
func lockRows(status Status, complaint time.Time, responded interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(lockColumns).AddRow(10, string(status), 3, complaint, responded, responded)
}

// listArgs returns the ListTickets arguments for actor with only status,
// project and company set.
func listArgs(status string, projectID, companyID int64) []driver.Value {
	return []driver.Value{int64(2), int64(1), status, projectID, companyID,
		int64(0), int64(0), int64(0), int64(0), int64(0), "", "", nil, nil}
}

func TestListTickets(t *testing.T) {
	f := newMockService(t)
	f.mock.ExpectQuery("FROM tickets t").
		WithArgs(listArgs("Open", int64(3), int64(0))...).
		WillReturnRows(ticketRows(10, StatusOpen, fixedNow))

	tickets, err := f.svc.ListTickets(context.Background(), Filter{Actor: actor, Status: StatusOpen, ProjectID: 3})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, StatusOpen, tickets[0].Status)
	assert.Nil(t, tickets[0].AssignedTo)
	assert.Nil(t, tickets[0].ResolvedAt)
	assert.Equal(t, "Acme", tickets[0].CompanyName)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestListTickets_ReportCriteria(t *testing.T) {
	f := newMockService(t)
	from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f.mock.ExpectQuery("t.complaint_by ILIKE").
		WithArgs(int64(2), int64(1), "", int64(0), int64(0),
			int64(4), int64(0), int64(5), int64(0), int64(0), "sam", "Mail", from, nil).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns))

	tickets, err := f.svc.ListTickets(context.Background(), Filter{
		Actor:          actor,
		LocationID:     4,
		InvolvedUserID: 5,
		ComplaintBy:    "sam",
		Channel:        ChannelMail,
		From:           from,
	})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGetTicket_OutOfScopeIsNotFound(t *testing.T) {
	f := newMockService(t)
	f.mock.ExpectQuery("FROM tickets t").
		WithArgs(int64(2), int64(1), int64(10)).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns))

	_, err := f.svc.GetTicket(context.Background(), actor, 10)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func validTicket() TicketRequest {
	return TicketRequest{
		Title:       " Printer down ",
		Description: "Jammed",
		ProjectID:   3,
		LocationID:  4,
		Channel:     ChannelCall,
		ComplaintBy: "Sam",
	}
}

func TestCreateTicket(t *testing.T) {
	t.Run("opens ticket and clamps future complaint time", func(t *testing.T) {
		f := newMockService(t)
		req := validTicket()
		req.ComplaintTime = httputil.Timestamp{Time: fixedNow.Add(time.Hour)}

		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(2), int64(1), int64(3), int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		f.mock.ExpectQuery("INSERT INTO tickets").
			WithArgs(sqlmock.AnyArg(), "Printer down", "Jammed", int64(3), int64(4), ChannelCall, "Sam",
				fixedNow, "Open", int64(1), fixedNow).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(10, fixedNow, fixedNow))
		f.mock.ExpectQuery("INSERT INTO ticket_history").
			WithArgs(int64(10), "create", "", "Open", "Ticket created", int64(1), fixedNow).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		f.mock.ExpectCommit()

		ticket, err := f.svc.CreateTicket(context.Background(), actor, req)
		require.NoError(t, err)
		assert.Equal(t, int64(10), ticket.ID)
		assert.Equal(t, StatusOpen, ticket.Status)
		assert.Regexp(t, `^TKT-[0-9A-Z]{26}$`, ticket.TicketUID)
		assert.Equal(t, fixedNow, ticket.ComplaintAt)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TicketTransitionsTotal.WithLabelValues("create", "Open")))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("stores attachment in the same transaction", func(t *testing.T) {
		f := newMockService(t)
		req := validTicket()
		req.Attachment = &attachments.Upload{Name: "photo.png", Type: "image/png", Data: base64.StdEncoding.EncodeToString([]byte("img"))}

		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		f.mock.ExpectQuery("INSERT INTO tickets").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(10, fixedNow, fixedNow))
		f.mock.ExpectQuery("INSERT INTO ticket_history").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		f.mock.ExpectQuery("INSERT INTO attachments \\(ticket_id,").
			WithArgs(int64(10), sqlmock.AnyArg(), "photo.png", "image/png", int64(3), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, fixedNow))
		f.mock.ExpectCommit()

		_, err := f.svc.CreateTicket(context.Background(), actor, req)
		require.NoError(t, err)
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("stale project or location", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		f.mock.ExpectRollback()

		_, err := f.svc.CreateTicket(context.Background(), actor, validTicket())
		require.Error(t, err)
		assert.Equal(t, apperr.KindStale, apperr.KindOf(err))
		assert.Equal(t, apperr.StaleAccessMessage, apperr.MessageOf(err))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("validation", func(t *testing.T) {
		f := newMockService(t)
		req := validTicket()
		req.Channel = "Fax"
		req.Title = "  "

		_, err := f.svc.CreateTicket(context.Background(), actor, req)
		fields := apperr.FieldsOf(err)
		assert.Contains(t, fields, "channel")
		assert.Contains(t, fields, "title")
		require.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestUpdateTicket(t *testing.T) {
	f := newMockService(t)
	complaint := fixedNow.Add(-time.Hour)
	req := UpdateTicketRequest{ID: 10, TicketRequest: validTicket()}
	req.ComplaintTime = httputil.Timestamp{Time: complaint}

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE OF t").
		WithArgs(int64(2), int64(1), int64(10)).
		WillReturnRows(lockRows(StatusOpen, complaint, nil))
	f.mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	f.mock.ExpectExec("UPDATE tickets").
		WithArgs("Printer down", "Jammed", int64(3), int64(4), ChannelCall, "Sam", complaint, int64(1), fixedNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.UpdateTicket(context.Background(), actor, req))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateTicket_ComplaintAfterRecordedEvents(t *testing.T) {
	responded := fixedNow.Add(-3 * time.Hour)
	resolved := fixedNow.Add(-2 * time.Hour)

	tests := []struct {
		name       string
		responded  interface{}
		firstEvent time.Time
		complaint  time.Time
	}{
		{"after first response", responded, responded, responded.Add(time.Hour)},
		{"after resolution without response", nil, resolved, resolved.Add(time.Minute)},
		{"omitted on a handled ticket", responded, responded, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMockService(t)
			req := UpdateTicketRequest{ID: 10, TicketRequest: validTicket()}
			req.ComplaintTime = httputil.Timestamp{Time: tt.complaint}

			f.mock.ExpectBegin()
			f.mock.ExpectQuery("FOR UPDATE OF t").
				WillReturnRows(sqlmock.NewRows(lockColumns).
					AddRow(10, string(StatusResolved), 3, fixedNow.Add(-4*time.Hour), tt.responded, tt.firstEvent))
			f.mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			f.mock.ExpectRollback()

			err := f.svc.UpdateTicket(context.Background(), actor, req)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Contains(t, apperr.MessageOf(err), "Complaint time cannot be later than")
			require.NoError(t, f.mock.ExpectationsWereMet())
		})
	}

	t.Run("at the first response", func(t *testing.T) {
		f := newMockService(t)
		req := UpdateTicketRequest{ID: 10, TicketRequest: validTicket()}
		req.ComplaintTime = httputil.Timestamp{Time: responded}

		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusInProgress, fixedNow.Add(-4*time.Hour), responded))
		f.mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		f.mock.ExpectExec("UPDATE tickets").
			WithArgs("Printer down", "Jammed", int64(3), int64(4), ChannelCall, "Sam", responded, int64(1), fixedNow, int64(10)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		require.NoError(t, f.svc.UpdateTicket(context.Background(), actor, req))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestCountByStatus(t *testing.T) {
	f := newMockService(t)
	f.mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) FROM tickets GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("Open", 4).AddRow("Resolved", 2))

	counts, err := f.svc.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts[StatusOpen])
	assert.Equal(t, int64(2), counts[StatusResolved])
	assert.Equal(t, int64(0), counts[StatusReopened])
	assert.Len(t, counts, len(Statuses))
}

func TestAttachment_ChecksTicketVisibility(t *testing.T) {
	f := newMockService(t)
	f.mock.ExpectQuery("SELECT COALESCE\\(a.ticket_id, tc.ticket_id\\)").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"ticket_id"}).AddRow(10))
	f.mock.ExpectQuery("FROM tickets t").
		WillReturnRows(sqlmock.NewRows(ticketRowColumns))

	_, err := f.svc.Attachment(context.Background(), actor, 5)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Attachment not found", apperr.MessageOf(err))
	require.NoError(t, f.mock.ExpectationsWereMet())
}
