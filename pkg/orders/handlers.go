package orders

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/attachments"
	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
)

// Handlers provides HTTP handlers for purchase orders and invoices
type Handlers struct {
	service *PostgresService
	files   *attachments.Service
	guard   *permissions.Guard
}

// NewHandlers creates order handlers
func NewHandlers(service *PostgresService, files *attachments.Service, guard *permissions.Guard) *Handlers {
	return &Handlers{service: service, files: files, guard: guard}
}

// RegisterRoutes registers purchase order and invoice routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	orders := func(action permissions.Action, fn http.HandlerFunc) http.Handler {
		return h.guard.RequirePermission(permissions.PagePurchaseOrders, action)(fn)
	}
	invoices := func(action permissions.Action, fn http.HandlerFunc) http.Handler {
		return h.guard.RequirePermission(permissions.PageInvoices, action)(fn)
	}
	attach := func(fn http.HandlerFunc) http.Handler { return h.guard.Attach(fn) }

	router.Handle("/purchase-orders", attach(h.ListPurchaseOrders)).Methods("GET")
	router.Handle("/purchase-orders", orders(permissions.ActionCreate, h.CreatePurchaseOrder)).Methods("POST")
	router.Handle("/purchase-orders/update", orders(permissions.ActionEdit, h.UpdatePurchaseOrder)).Methods("POST")
	router.Handle("/purchase-orders/status", orders(permissions.ActionStatusChange, h.SetPurchaseOrderStatus)).Methods("POST")
	router.Handle("/purchase-orders/{id:[0-9]+}/file", attach(h.GetPurchaseOrderFile)).Methods("GET")
	router.Handle("/purchase-orders/{id:[0-9]+}/invoices", attach(h.ListInvoices)).Methods("GET")
	router.Handle("/invoices", invoices(permissions.ActionCreate, h.CreateInvoice)).Methods("POST")
	router.Handle("/invoices/update", invoices(permissions.ActionEdit, h.UpdateInvoice)).Methods("POST")
	router.Handle("/invoices/status", invoices(permissions.ActionStatusChange, h.SetInvoiceStatus)).Methods("POST")
	router.Handle("/invoices/{id:[0-9]+}/file", attach(h.GetInvoiceFile)).Methods("GET")
}

func viewer(ctx context.Context) (companyID, userID int64) {
	ac := auth.FromContext(ctx)
	if ac == nil {
		return 0, 0
	}
	return ac.CompanyID, ac.UserID
}

// ListPurchaseOrders handles GET /purchase-orders with optional companyId,
// projectId and active query parameters.
func (h *Handlers) ListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	companyID, err := httputil.ParseQueryInt64(r, "companyId", 0)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, err := httputil.ParseQueryInt64(r, "projectId", 0)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	viewerCompany, _ := viewer(r.Context())
	orders, err := h.service.ListPurchaseOrders(r.Context(), Filter{
		ViewerCompanyID: viewerCompany,
		CompanyID:       companyID,
		ProjectID:       projectID,
		ActiveOnly:      httputil.ParseQueryString(r, "active", "") == "true",
	})
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, orders)
}

// CreatePurchaseOrder handles POST /purchase-orders
func (h *Handlers) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req PORequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	_, userID := viewer(r.Context())
	po, err := h.service.CreatePurchaseOrder(r.Context(), userID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Purchase order created successfully!", po)
}

// UpdatePurchaseOrder handles POST /purchase-orders/update
func (h *Handlers) UpdatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req UpdatePORequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	_, userID := viewer(r.Context())
	if err := h.service.UpdatePurchaseOrder(r.Context(), userID, req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Purchase order updated successfully!", nil)
}

// SetPurchaseOrderStatus handles POST /purchase-orders/status
func (h *Handlers) SetPurchaseOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req httputil.StatusChange
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.SetPurchaseOrderActive(r.Context(), req.ID, req.IsActive == 1); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Purchase order status updated successfully!", nil)
}

// GetPurchaseOrderFile handles GET /purchase-orders/{id}/file
func (h *Handlers) GetPurchaseOrderFile(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	viewerCompany, _ := viewer(r.Context())
	po, err := h.service.GetPurchaseOrder(r.Context(), viewerCompany, id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	h.writeFile(w, r, po.File)
}

// ListInvoices handles GET /purchase-orders/{id}/invoices
func (h *Handlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	viewerCompany, _ := viewer(r.Context())
	invoices, err := h.service.ListInvoices(r.Context(), viewerCompany, id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, invoices)
}

// CreateInvoice handles POST /invoices
func (h *Handlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	viewerCompany, userID := viewer(r.Context())
	inv, err := h.service.CreateInvoice(r.Context(), viewerCompany, userID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Invoice created successfully!", inv)
}

// UpdateInvoice handles POST /invoices/update
func (h *Handlers) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var req UpdateInvoiceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	viewerCompany, userID := viewer(r.Context())
	if err := h.service.UpdateInvoice(r.Context(), viewerCompany, userID, req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Invoice updated successfully!", nil)
}

// SetInvoiceStatus handles POST /invoices/status
func (h *Handlers) SetInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var req httputil.StatusChange
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.SetInvoiceActive(r.Context(), req.ID, req.IsActive == 1); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Invoice status updated successfully!", nil)
}

// GetInvoiceFile handles GET /invoices/{id}/file
func (h *Handlers) GetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	viewerCompany, _ := viewer(r.Context())
	inv, err := h.service.GetInvoice(r.Context(), viewerCompany, id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	h.writeFile(w, r, inv.File)
}

// writeFile answers with the file inline as base64, or as raw bytes when
// download=1 is set.
func (h *Handlers) writeFile(w http.ResponseWriter, r *http.Request, a *attachments.Attachment) {
	if a == nil {
		httputil.WriteAppError(w, r, apperr.NotFound("File"))
		return
	}
	if httputil.ParseQueryString(r, "download", "") == "1" {
		h.files.ServeFile(w, r, a)
		return
	}
	data, err := h.files.Fetch(r.Context(), a)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, data)
}
