package orders

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
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
	svc   *PostgresService
	files *attachments.Service
	blobs storage.BlobStore
	mock  sqlmock.Sqlmock
}

func newMockService(t *testing.T) *fixture {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	blobs, err := storage.NewFileSystemStorage(t.TempDir())
	require.NoError(t, err)
	files := attachments.NewService(db, blobs, observability.NewMetrics(prometheus.NewRegistry()))

	svc := NewPostgresService(db, files)
	svc.now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, files: files, blobs: blobs, mock: mock}
}

var (
	poColumns = []string{
		"id", "po_number", "company_id", "company_name", "project_id", "project_name",
		"po_date", "po_amount", "comment", "is_active", "invoice_count", "invoiced_amount",
		"created_at", "updated_at",
	}
	invoiceColumns = []string{
		"id", "purchase_order_id", "po_number", "company_id", "company_name",
		"invoice_number", "invoice_amount", "invoice_date", "is_active", "created_at", "updated_at",
	}
	attachmentColumns = []string{"id", "kind", "owner_id", "object_key", "file_name", "file_type", "size_bytes", "uploaded_by", "created_at"}
	poDate            = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
)

func validPO() PORequest {
	return PORequest{
		PONumber:  " po2025a ",
		CompanyID: 2,
		ProjectID: 3,
		PODate:    httputil.Timestamp{Time: time.Date(2025, 5, 1, 15, 30, 0, 0, time.UTC)},
		POAmount:  "1500.50",
		Comment:   "First batch",
	}
}

func TestListPurchaseOrders(t *testing.T) {
	f := newMockService(t)
	f.mock.ExpectQuery("FROM purchase_orders po").
		WithArgs(int64(2), int64(0), int64(3), true).
		WillReturnRows(sqlmock.NewRows(poColumns).
			AddRow(7, "PO2025A", 2, "Acme", 3, "Rollout", poDate, "1500.50", "", true, 1, "500.00", fixedNow, fixedNow).
			AddRow(8, "PO2025B", 2, "Acme", 3, "Rollout", poDate, "200.00", "", true, 0, "0.00", fixedNow, fixedNow))
	f.mock.ExpectQuery("WHERE purchase_order_id = ANY").
		WillReturnRows(sqlmock.NewRows(attachmentColumns).
			AddRow(4, "purchase_order", 7, "purchase_order/7/old.pdf", "old.pdf", "application/pdf", 3, 1, fixedNow.Add(-time.Hour)).
			AddRow(5, "purchase_order", 7, "purchase_order/7/new.pdf", "new.pdf", "application/pdf", 3, 1, fixedNow))

	orders, err := f.svc.ListPurchaseOrders(context.Background(), Filter{ViewerCompanyID: 2, ProjectID: 3, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.NotNil(t, orders[0].File)
	assert.Equal(t, "new.pdf", orders[0].File.FileName)
	assert.Equal(t, "500.00", orders[0].InvoicedAmount)
	assert.Nil(t, orders[1].File)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestGetPurchaseOrder_NotVisible(t *testing.T) {
	f := newMockService(t)
	f.mock.ExpectQuery("FROM purchase_orders po").
		WithArgs(int64(2), int64(7)).
		WillReturnRows(sqlmock.NewRows(poColumns))

	_, err := f.svc.GetPurchaseOrder(context.Background(), 2, 7)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Purchase order not found", apperr.MessageOf(err))
}

func TestCreatePurchaseOrder(t *testing.T) {
	t.Run("normalizes and stores file", func(t *testing.T) {
		f := newMockService(t)
		req := validPO()
		req.File = &attachments.Upload{Name: "po.pdf", Type: "application/pdf", Data: base64.StdEncoding.EncodeToString([]byte("pdf"))}

		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM projects").
			WithArgs(int64(3), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		f.mock.ExpectQuery("INSERT INTO purchase_orders").
			WithArgs("PO2025A", int64(2), int64(3), poDate, "1500.50", "First batch", int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(7, fixedNow, fixedNow))
		f.mock.ExpectQuery("INSERT INTO attachments \\(purchase_order_id,").
			WithArgs(int64(7), sqlmock.AnyArg(), "po.pdf", "application/pdf", int64(3), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, fixedNow))
		f.mock.ExpectCommit()

		po, err := f.svc.CreatePurchaseOrder(context.Background(), 1, req)
		require.NoError(t, err)
		assert.Equal(t, int64(7), po.ID)
		assert.Equal(t, "PO2025A", po.PONumber)
		require.NotNil(t, po.File)
		assert.Equal(t, int64(5), po.File.ID)
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("project of another customer", func(t *testing.T) {
		f := newMockService(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		f.mock.ExpectRollback()

		_, err := f.svc.CreatePurchaseOrder(context.Background(), 1, validPO())
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("field rules", func(t *testing.T) {
		f := newMockService(t)
		req := validPO()
		req.PONumber = "PO-1"
		req.POAmount = "12.345"
		req.Comment = "bad <tag>"
		req.PODate = httputil.Timestamp{}

		_, err := f.svc.CreatePurchaseOrder(context.Background(), 1, req)
		fields := apperr.FieldsOf(err)
		assert.Contains(t, fields, "poNumber")
		assert.Contains(t, fields, "poAmount")
		assert.Contains(t, fields, "poComment")
		assert.Equal(t, "poDate is required", fields["poDate"])
		require.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestUpdatePurchaseOrder_InactiveIsNotFound(t *testing.T) {
	f := newMockService(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	f.mock.ExpectExec("UPDATE purchase_orders").
		WithArgs("PO2025A", int64(2), int64(3), poDate, "1500.50", "First batch", fixedNow, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectRollback()

	err := f.svc.UpdatePurchaseOrder(context.Background(), 1, UpdatePORequest{ID: 7, PORequest: validPO()})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSetPurchaseOrderActive(t *testing.T) {
	f := newMockService(t)
	f.mock.ExpectExec("UPDATE purchase_orders SET is_active").
		WithArgs(false, fixedNow, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, f.svc.SetPurchaseOrderActive(context.Background(), 7, false))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLatest(t *testing.T) {
	assert.Nil(t, latest(nil))
	a := &attachments.Attachment{ID: 1, CreatedAt: fixedNow}
	b := &attachments.Attachment{ID: 2, CreatedAt: fixedNow}
	c := &attachments.Attachment{ID: 3, CreatedAt: fixedNow.Add(-time.Minute)}
	assert.Same(t, b, latest([]*attachments.Attachment{a, b, c}))
}
