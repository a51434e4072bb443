package orders

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
	"github.com/platinummonkey/helpdesk/pkg/storage"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

// PostgresService stores purchase orders and invoices in PostgreSQL.
type PostgresService struct {
	db          *sql.DB
	attachments *attachments.Service
	now         func() time.Time
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, files *attachments.Service) *PostgresService {
	return &PostgresService{
		db:          db,
		attachments: files,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

const poSelect = `
	SELECT po.id, po.po_number, po.company_id, COALESCE(c.name, ''), po.project_id, COALESCE(p.name, ''),
	       po.po_date, po.po_amount::TEXT, po.comment, po.is_active,
	       (SELECT COUNT(*) FROM invoices i WHERE i.purchase_order_id = po.id AND i.is_active),
	       (SELECT COALESCE(SUM(i.invoice_amount), 0)::TEXT FROM invoices i WHERE i.purchase_order_id = po.id AND i.is_active),
	       po.created_at, po.updated_at
	FROM purchase_orders po
	LEFT JOIN companies c ON c.id = po.company_id
	LEFT JOIN projects p ON p.id = po.project_id`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPO(s scanner) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	err := s.Scan(&po.ID, &po.PONumber, &po.CompanyID, &po.CompanyName, &po.ProjectID, &po.ProjectName,
		&po.PODate, &po.POAmount, &po.Comment, &po.IsActive,
		&po.InvoiceCount, &po.InvoicedAmount, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return po, nil
}

// ListPurchaseOrders returns purchase orders visible to the viewer's company,
// newest first, each with its current file.
func (s *PostgresService) ListPurchaseOrders(ctx context.Context, filter Filter) ([]*PurchaseOrder, error) {
	query := poSelect + `
		WHERE (EXISTS (SELECT 1 FROM companies v WHERE v.id = $1 AND v.is_internal) OR po.company_id = $1)
		  AND ($2 = 0 OR po.company_id = $2)
		  AND ($3 = 0 OR po.project_id = $3)
		  AND (NOT $4 OR po.is_active)
		ORDER BY po.po_date DESC, po.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, filter.ViewerCompanyID, filter.CompanyID, filter.ProjectID, filter.ActiveOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*PurchaseOrder, 0)
	var ids []int64
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		orders = append(orders, po)
		ids = append(ids, po.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate purchase orders: %w", err)
	}
	rows.Close()

	files, err := s.attachments.ListByOwners(ctx, attachments.OwnerPurchaseOrder, ids)
	if err != nil {
		return nil, err
	}
	for _, po := range orders {
		po.File = latest(files[po.ID])
	}
	return orders, nil
}

// GetPurchaseOrder returns a purchase order visible to viewerCompanyID.
func (s *PostgresService) GetPurchaseOrder(ctx context.Context, viewerCompanyID, id int64) (*PurchaseOrder, error) {
	query := poSelect + `
		WHERE po.id = $2
		  AND (EXISTS (SELECT 1 FROM companies v WHERE v.id = $1 AND v.is_internal) OR po.company_id = $1)
	`
	po, err := scanPO(s.db.QueryRowContext(ctx, query, viewerCompanyID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Purchase order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}
	files, err := s.attachments.List(ctx, attachments.Owner{Kind: attachments.OwnerPurchaseOrder, ID: id})
	if err != nil {
		return nil, err
	}
	po.File = latest(files)
	return po, nil
}

// CreatePurchaseOrder stores a new active purchase order and its optional
// file.
func (s *PostgresService) CreatePurchaseOrder(ctx context.Context, actorID int64, req PORequest) (*PurchaseOrder, error) {
	req = preparePO(req)
	if err := requireDate(validation.Struct(req), "poDate", req.PODate.Time); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkProject(ctx, tx, req.CompanyID, req.ProjectID); err != nil {
		return nil, err
	}

	po := &PurchaseOrder{
		PONumber:       req.PONumber,
		CompanyID:      req.CompanyID,
		ProjectID:      req.ProjectID,
		PODate:         dateOf(req.PODate.Time),
		POAmount:       req.POAmount,
		Comment:        req.Comment,
		IsActive:       true,
		InvoicedAmount: "0.00",
	}
	query := `
		INSERT INTO purchase_orders (po_number, company_id, project_id, po_date, po_amount, comment, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query, po.PONumber, po.CompanyID, po.ProjectID, po.PODate, po.POAmount, po.Comment, actorID).
		Scan(&po.ID, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return nil, storage.TranslateError(fmt.Errorf("failed to create purchase order: %w", err), "Purchase order")
	}
	if !req.File.Empty() {
		po.File, err = s.attachments.Save(ctx, tx, attachments.Owner{Kind: attachments.OwnerPurchaseOrder, ID: po.ID}, req.File, actorID)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	audit.Record(ctx, audit.EventTypeDataCreate, audit.ResourceTypePurchaseOrder,
		strconv.FormatInt(po.ID, 10), "purchase order created: "+po.PONumber, nil)
	return po, nil
}

// UpdatePurchaseOrder replaces the editable fields of an active purchase
// order. A new file, when given, becomes the current one.
func (s *PostgresService) UpdatePurchaseOrder(ctx context.Context, actorID int64, req UpdatePORequest) error {
	req.PORequest = preparePO(req.PORequest)
	if err := requireDate(validation.Struct(req), "poDate", req.PODate.Time); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkProject(ctx, tx, req.CompanyID, req.ProjectID); err != nil {
		return err
	}

	query := `
		UPDATE purchase_orders
		SET po_number = $1, company_id = $2, project_id = $3, po_date = $4, po_amount = $5, comment = $6, updated_at = $7
		WHERE id = $8 AND is_active
	`
	result, err := tx.ExecContext(ctx, query, req.PONumber, req.CompanyID, req.ProjectID,
		dateOf(req.PODate.Time), req.POAmount, req.Comment, s.now(), req.ID)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to update purchase order: %w", err), "Purchase order")
	}
	if err := storage.RequireRow(result, "Purchase order"); err != nil {
		return err
	}
	if !req.File.Empty() {
		if _, err := s.attachments.Save(ctx, tx, attachments.Owner{Kind: attachments.OwnerPurchaseOrder, ID: req.ID}, req.File, actorID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	audit.Record(ctx, audit.EventTypeDataUpdate, audit.ResourceTypePurchaseOrder,
		strconv.FormatInt(req.ID, 10), "purchase order updated: "+req.PONumber, nil)
	return nil
}

// SetPurchaseOrderActive activates or deactivates a purchase order.
func (s *PostgresService) SetPurchaseOrderActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE purchase_orders SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update purchase order status: %w", err)
	}
	if err := storage.RequireRow(result, "Purchase order"); err != nil {
		return err
	}

	audit.Record(ctx, audit.EventTypeDataStatusChange, audit.ResourceTypePurchaseOrder,
		strconv.FormatInt(id, 10), "purchase order status changed",
		&audit.ChangeDetails{After: map[string]interface{}{"is_active": active}})
	return nil
}

func preparePO(req PORequest) PORequest {
	req.PONumber = strings.ToUpper(strings.TrimSpace(req.PONumber))
	req.POAmount = strings.TrimSpace(req.POAmount)
	req.Comment = strings.TrimSpace(req.Comment)
	return req
}

// requireDate adds a field error for a missing date to the validation
// result of the surrounding struct.
func requireDate(err error, field string, date time.Time) error {
	if !date.IsZero() {
		return err
	}
	fields := map[string]string{}
	for k, v := range apperr.FieldsOf(err) {
		fields[k] = v
	}
	fields[field] = field + " is required"
	return apperr.ValidationFields(fields)
}

// checkProject verifies projectID is an active project of companyID.
func checkProject(ctx context.Context, tx *sql.Tx, companyID, projectID int64) error {
	var ok bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND company_id = $2 AND is_active)`,
		projectID, companyID,
	).Scan(&ok)
	if err != nil {
		return fmt.Errorf("failed to check project: %w", err)
	}
	if !ok {
		return apperr.Validation("Selected project must be an active project of the selected customer")
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func latest(files []*attachments.Attachment) *attachments.Attachment {
	var out *attachments.Attachment
	for _, f := range files {
		if out == nil || f.CreatedAt.After(out.CreatedAt) || (f.CreatedAt.Equal(out.CreatedAt) && f.ID > out.ID) {
			out = f
		}
	}
	return out
}
