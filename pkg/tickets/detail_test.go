package tickets

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/attachments"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
)

var attachmentColumns = []string{"id", "kind", "owner_id", "object_key", "file_name", "file_type", "size_bytes", "uploaded_by", "created_at"}

func TestAddComment(t *testing.T) {
	t.Run("with attachment", func(t *testing.T) {
		f := newMockService(t)
		commentedAt := fixedNow.Add(-10 * time.Minute)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusOpen, fixedNow.Add(-time.Hour), nil))
		f.mock.ExpectQuery("INSERT INTO ticket_comments").
			WithArgs(int64(10), int64(1), "See photo", commentedAt).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(30, fixedNow))
		f.mock.ExpectQuery("INSERT INTO attachments \\(comment_id,").
			WithArgs(int64(30), sqlmock.AnyArg(), "photo.png", "image/png", int64(3), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(8, fixedNow))
		f.mock.ExpectCommit()

		c, err := f.svc.AddComment(context.Background(), actor, 10, CommentRequest{
			Text:        "See photo",
			CommentedAt: httputil.Timestamp{Time: commentedAt},
			Attachment:  &attachments.Upload{Name: "photo.png", Data: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("img"))},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(30), c.ID)
		require.Len(t, c.Attachments, 1)
		assert.Equal(t, int64(8), c.Attachments[0].ID)
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("oversize attachment rolls back", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("FOR UPDATE OF t").WillReturnRows(lockRows(StatusOpen, fixedNow.Add(-time.Hour), nil))
		f.mock.ExpectQuery("INSERT INTO ticket_comments").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(30, fixedNow))
		f.mock.ExpectRollback()

		_, err := f.svc.AddComment(context.Background(), actor, 10, CommentRequest{
			Text:       "Big file",
			Attachment: &attachments.Upload{Name: "big.bin", Data: base64.StdEncoding.EncodeToString(make([]byte, attachments.MaxSize+1))},
		})
		assert.Equal(t, attachments.TooLargeMessage, apperr.MessageOf(err))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("empty text", func(t *testing.T) {
		f := newMockService(t)
		_, err := f.svc.AddComment(context.Background(), actor, 10, CommentRequest{Text: " "})
		assert.Contains(t, apperr.FieldsOf(err), "text")
	})
}

func TestGetDetail(t *testing.T) {
	f := newMockService(t)
	f.mock.MatchExpectationsInOrder(false)
	complaint := fixedNow.Add(-5 * time.Hour)

	f.mock.ExpectQuery("FROM tickets t").WillReturnRows(ticketRows(10, StatusResolved, complaint))
	f.mock.ExpectQuery("FROM ticket_history h").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_id", "action", "old_status", "new_status", "remarks", "changed_by", "changed_by_name", "changed_at"}).
			AddRow(1, 10, "create", "", "Open", "Ticket created", 1, "Admin", complaint).
			AddRow(2, 10, "resolve", "Open", "Resolved", "Fixed", 1, "Admin", fixedNow))
	f.mock.ExpectQuery("FROM ticket_assignments a").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "assigned_to", "assigned_to_name", "assigned_by", "assigned_by_name", "assigned_at"}).
			AddRow(1, 5, "Riya", 1, "Admin", complaint))
	f.mock.ExpectQuery("FROM ticket_comments c").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_id", "author_id", "author_name", "text", "commented_at", "created_at"}))
	f.mock.ExpectQuery("FROM attachments WHERE ticket_id = \\$1").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(attachmentColumns))
	f.mock.ExpectQuery("SELECT is_internal FROM companies").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"is_internal"}).AddRow(true))

	d, err := f.svc.GetDetail(context.Background(), actor, 10)
	require.NoError(t, err)
	assert.True(t, d.IsInternal)
	assert.Len(t, d.History, 2)
	assert.Len(t, d.Assignments, 1)
	assert.Empty(t, d.Comments)
	assert.Empty(t, d.Attachments)
	require.Len(t, d.ResolutionHistory, 1)
	assert.Equal(t, "Fixed", d.ResolutionHistory[0].Remarks)
	assert.Empty(t, d.ReopenHistory)
	require.Len(t, d.Activity, 1)
	assert.Equal(t, ActivityStatus, d.Activity[0].Kind)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestListComments_AttachesFiles(t *testing.T) {
	f := newMockService(t)
	f.mock.ExpectQuery("FROM ticket_comments c").
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_id", "author_id", "author_name", "text", "commented_at", "created_at"}).
			AddRow(30, 10, 1, "Admin", "one", fixedNow, fixedNow).
			AddRow(31, 10, 5, "Riya", "two", fixedNow, fixedNow))
	f.mock.ExpectQuery("WHERE comment_id = ANY").
		WillReturnRows(sqlmock.NewRows(attachmentColumns).
			AddRow(8, "comment", 31, "comment/31/x.png", "x.png", "image/png", 3, 5, fixedNow))

	comments, err := f.svc.ListComments(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Empty(t, comments[0].Attachments)
	require.Len(t, comments[1].Attachments, 1)
	assert.Equal(t, "x.png", comments[1].Attachments[0].FileName)
	require.NoError(t, f.mock.ExpectationsWereMet())
}
