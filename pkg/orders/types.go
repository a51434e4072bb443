package orders

import (
	"time"

	"github.com/platinummonkey/helpdesk/pkg/attachments"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
)

// PurchaseOrder is a customer order against a project. Amounts are decimal
// strings with at most two places.
type PurchaseOrder struct {
	ID             int64                   `json:"id"`
	PONumber       string                  `json:"poNumber"`
	CompanyID      int64                   `json:"companyId"`
	CompanyName    string                  `json:"customer"`
	ProjectID      int64                   `json:"projectId"`
	ProjectName    string                  `json:"project"`
	PODate         time.Time               `json:"poDate"`
	POAmount       string                  `json:"poAmount"`
	Comment        string                  `json:"poComment"`
	IsActive       bool                    `json:"isActive"`
	InvoiceCount   int                     `json:"invoiceCount"`
	InvoicedAmount string                  `json:"invoicedAmount"`
	File           *attachments.Attachment `json:"poFile"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// Invoice is billed against a purchase order.
type Invoice struct {
	ID              int64                   `json:"id"`
	PurchaseOrderID int64                   `json:"poId"`
	PONumber        string                  `json:"poNumber"`
	CompanyID       int64                   `json:"customerId"`
	CompanyName     string                  `json:"customerName"`
	InvoiceNumber   string                  `json:"invoice_number"`
	InvoiceAmount   string                  `json:"invoice_amount"`
	InvoiceDate     time.Time               `json:"invoice_date"`
	IsActive        bool                    `json:"isActive"`
	File            *attachments.Attachment `json:"invoice_file"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// PORequest is the body of POST /purchase-orders.
type PORequest struct {
	PONumber  string              `json:"poNumber" validate:"required,max=15,po_number"`
	CompanyID int64               `json:"company" validate:"gt=0"`
	ProjectID int64               `json:"project" validate:"gt=0"`
	PODate    httputil.Timestamp  `json:"poDate"`
	POAmount  string              `json:"poAmount" validate:"required,max=10,amount"`
	Comment   string              `json:"poComment" validate:"max=100,po_comment"`
	File      *attachments.Upload `json:"poFile"`
}

// UpdatePORequest is the body of POST /purchase-orders/update.
type UpdatePORequest struct {
	ID int64 `json:"id" validate:"gt=0"`
	PORequest
}

// InvoiceRequest is the body of POST /invoices.
type InvoiceRequest struct {
	PurchaseOrderID int64               `json:"poId" validate:"gt=0"`
	InvoiceNumber   string              `json:"invoice_number" validate:"required,max=15,alphanum"`
	InvoiceAmount   string              `json:"invoice_amount" validate:"required,max=10,amount"`
	InvoiceDate     httputil.Timestamp  `json:"invoice_date"`
	File            *attachments.Upload `json:"invoice_file"`
}

// UpdateInvoiceRequest is the body of POST /invoices/update.
type UpdateInvoiceRequest struct {
	ID int64 `json:"id" validate:"gt=0"`
	InvoiceRequest
}

// Filter narrows GET /purchase-orders.
type Filter struct {
	ViewerCompanyID int64
	CompanyID       int64
	ProjectID       int64
	ActiveOnly      bool
}
