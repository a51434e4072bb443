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

const invoiceSelect = `
	SELECT i.id, i.purchase_order_id, po.po_number, po.company_id, COALESCE(c.name, ''),
	       i.invoice_number, i.invoice_amount::TEXT, i.invoice_date, i.is_active, i.created_at, i.updated_at
	FROM invoices i
	JOIN purchase_orders po ON po.id = i.purchase_order_id
	LEFT JOIN companies c ON c.id = po.company_id`

const poVisible = `(EXISTS (SELECT 1 FROM companies v WHERE v.id = $1 AND v.is_internal) OR po.company_id = $1)`

func scanInvoice(s scanner) (*Invoice, error) {
	inv := &Invoice{}
	err := s.Scan(&inv.ID, &inv.PurchaseOrderID, &inv.PONumber, &inv.CompanyID, &inv.CompanyName,
		&inv.InvoiceNumber, &inv.InvoiceAmount, &inv.InvoiceDate, &inv.IsActive, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns the invoices of a purchase order visible to
// viewerCompanyID, newest first.
func (s *PostgresService) ListInvoices(ctx context.Context, viewerCompanyID, poID int64) ([]*Invoice, error) {
	query := invoiceSelect + `
		WHERE i.purchase_order_id = $2 AND ` + poVisible + `
		ORDER BY i.invoice_date DESC, i.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, viewerCompanyID, poID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]*Invoice, 0)
	var ids []int64
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
		ids = append(ids, inv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	rows.Close()

	files, err := s.attachments.ListByOwners(ctx, attachments.OwnerInvoice, ids)
	if err != nil {
		return nil, err
	}
	for _, inv := range invoices {
		inv.File = latest(files[inv.ID])
	}
	return invoices, nil
}

// GetInvoice returns an invoice whose purchase order is visible to
// viewerCompanyID.
func (s *PostgresService) GetInvoice(ctx context.Context, viewerCompanyID, id int64) (*Invoice, error) {
	query := invoiceSelect + ` WHERE i.id = $2 AND ` + poVisible
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, viewerCompanyID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Invoice")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	files, err := s.attachments.List(ctx, attachments.Owner{Kind: attachments.OwnerInvoice, ID: id})
	if err != nil {
		return nil, err
	}
	inv.File = latest(files)
	return inv, nil
}

// CreateInvoice raises an invoice against an active purchase order. The
// active invoices of a purchase order never total more than its amount.
func (s *PostgresService) CreateInvoice(ctx context.Context, viewerCompanyID, actorID int64, req InvoiceRequest) (*Invoice, error) {
	req = prepareInvoice(req)
	if err := requireDate(validation.Struct(req), "invoice_date", req.InvoiceDate.Time); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inv := &Invoice{
		PurchaseOrderID: req.PurchaseOrderID,
		InvoiceNumber:   req.InvoiceNumber,
		InvoiceAmount:   req.InvoiceAmount,
		InvoiceDate:     dateOf(req.InvoiceDate.Time),
		IsActive:        true,
	}
	if err := checkInvoice(ctx, tx, viewerCompanyID, 0, inv); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO invoices (purchase_order_id, invoice_number, invoice_amount, invoice_date, is_active, created_by)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query, inv.PurchaseOrderID, inv.InvoiceNumber, inv.InvoiceAmount, inv.InvoiceDate, actorID).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, storage.TranslateError(fmt.Errorf("failed to create invoice: %w", err), "Invoice")
	}
	if !req.File.Empty() {
		inv.File, err = s.attachments.Save(ctx, tx, attachments.Owner{Kind: attachments.OwnerInvoice, ID: inv.ID}, req.File, actorID)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	audit.Record(ctx, audit.EventTypeDataCreate, audit.ResourceTypeInvoice,
		strconv.FormatInt(inv.ID, 10), "invoice created: "+inv.InvoiceNumber, nil)
	return inv, nil
}

// UpdateInvoice replaces the editable fields of an active invoice.
func (s *PostgresService) UpdateInvoice(ctx context.Context, viewerCompanyID, actorID int64, req UpdateInvoiceRequest) error {
	req.InvoiceRequest = prepareInvoice(req.InvoiceRequest)
	if err := requireDate(validation.Struct(req), "invoice_date", req.InvoiceDate.Time); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inv := &Invoice{
		ID:              req.ID,
		PurchaseOrderID: req.PurchaseOrderID,
		InvoiceNumber:   req.InvoiceNumber,
		InvoiceAmount:   req.InvoiceAmount,
		InvoiceDate:     dateOf(req.InvoiceDate.Time),
	}
	if err := checkInvoice(ctx, tx, viewerCompanyID, req.ID, inv); err != nil {
		return err
	}

	query := `
		UPDATE invoices
		SET purchase_order_id = $1, invoice_number = $2, invoice_amount = $3, invoice_date = $4, updated_at = $5
		WHERE id = $6 AND is_active
	`
	result, err := tx.ExecContext(ctx, query, inv.PurchaseOrderID, inv.InvoiceNumber, inv.InvoiceAmount,
		inv.InvoiceDate, s.now(), req.ID)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to update invoice: %w", err), "Invoice")
	}
	if err := storage.RequireRow(result, "Invoice"); err != nil {
		return err
	}
	if !req.File.Empty() {
		if _, err := s.attachments.Save(ctx, tx, attachments.Owner{Kind: attachments.OwnerInvoice, ID: req.ID}, req.File, actorID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	audit.Record(ctx, audit.EventTypeDataUpdate, audit.ResourceTypeInvoice,
		strconv.FormatInt(req.ID, 10), "invoice updated: "+req.InvoiceNumber, nil)
	return nil
}

// SetInvoiceActive activates or deactivates an invoice.
func (s *PostgresService) SetInvoiceActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	if err := storage.RequireRow(result, "Invoice"); err != nil {
		return err
	}

	audit.Record(ctx, audit.EventTypeDataStatusChange, audit.ResourceTypeInvoice,
		strconv.FormatInt(id, 10), "invoice status changed",
		&audit.ChangeDetails{After: map[string]interface{}{"is_active": active}})
	return nil
}

func prepareInvoice(req InvoiceRequest) InvoiceRequest {
	req.InvoiceNumber = strings.ToUpper(strings.TrimSpace(req.InvoiceNumber))
	req.InvoiceAmount = strings.TrimSpace(req.InvoiceAmount)
	return req
}

// checkInvoice locks the target purchase order and verifies the invoice
// fits it. excludeID is the invoice being edited, whose current amount is
// left out of the running total.
func checkInvoice(ctx context.Context, tx *sql.Tx, viewerCompanyID, excludeID int64, inv *Invoice) error {
	query := `
		SELECT po.is_active, po.po_date,
		       po.po_amount - COALESCE((
		           SELECT SUM(i.invoice_amount) FROM invoices i
		           WHERE i.purchase_order_id = po.id AND i.is_active AND i.id <> $3
		       ), 0) >= $4::NUMERIC
		FROM purchase_orders po
		WHERE po.id = $2 AND ` + poVisible + `
		FOR UPDATE OF po
	`
	var (
		active bool
		poDate time.Time
		fits   bool
	)
	err := tx.QueryRowContext(ctx, query, viewerCompanyID, inv.PurchaseOrderID, excludeID, inv.InvoiceAmount).
		Scan(&active, &poDate, &fits)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("Purchase order")
	}
	if err != nil {
		return fmt.Errorf("failed to check purchase order: %w", err)
	}
	switch {
	case !active:
		return apperr.Validation("Invoices can only be raised against an active purchase order")
	case inv.InvoiceDate.Before(dateOf(poDate)):
		return apperr.ValidationFields(map[string]string{"invoice_date": "invoice_date cannot be earlier than the PO date"})
	case !fits:
		return apperr.ValidationFields(map[string]string{"invoice_amount": "Invoice total cannot exceed the PO amount"})
	}
	return nil
}
