package tickets

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/helpdesk/pkg/attachments"
	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
)

// Handlers provides HTTP handlers for tickets
type Handlers struct {
	service *PostgresService
	files   *attachments.Service
	guard   *permissions.Guard
}

// NewHandlers creates ticket handlers
func NewHandlers(service *PostgresService, files *attachments.Service, guard *permissions.Guard) *Handlers {
	return &Handlers{service: service, files: files, guard: guard}
}

// RegisterRoutes registers ticket routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	tickets := func(action permissions.Action, fn http.HandlerFunc) http.Handler {
		return h.guard.RequirePermission(permissions.PageTickets, action)(fn)
	}
	details := func(action permissions.Action, fn http.HandlerFunc) http.Handler {
		return h.guard.RequirePermission(permissions.PageTicketDetails, action)(fn)
	}

	router.Handle("/tickets", tickets(permissions.ActionView, h.ListTickets)).Methods("GET")
	router.Handle("/tickets", tickets(permissions.ActionCreate, h.CreateTicket)).Methods("POST")
	router.Handle("/tickets/update", tickets(permissions.ActionEdit, h.UpdateTicket)).Methods("POST")
	router.Handle("/tickets/{id:[0-9]+}", details(permissions.ActionView, h.GetDetail)).Methods("GET")
	router.Handle("/tickets/attachment/{id:[0-9]+}", details(permissions.ActionView, h.GetAttachment)).Methods("GET")
	router.Handle("/tickets/{id:[0-9]+}/assign", details(permissions.ActionAssign, h.Assign)).Methods("POST")
	router.Handle("/tickets/{id:[0-9]+}/comments", details(permissions.ActionView, h.AddComment)).Methods("POST")
	router.Handle("/tickets/{id:[0-9]+}/respond", details(permissions.ActionResponse, h.Respond)).Methods("POST")
	router.Handle("/tickets/{id:[0-9]+}/root-cause", details(permissions.ActionRootCause, h.RootCause)).Methods("POST")
	router.Handle("/tickets/{id:[0-9]+}/resolve", details(permissions.ActionStatusChange, h.Resolve)).Methods("POST")
	router.Handle("/tickets/{id:[0-9]+}/reopen", details(permissions.ActionReopen, h.Reopen)).Methods("POST")
	router.Handle("/tickets/{id:[0-9]+}/status", details(permissions.ActionStatusChange, h.ChangeStatus)).Methods("POST")
}

func actorOf(ctx context.Context) Actor {
	ac := auth.FromContext(ctx)
	if ac == nil {
		return Actor{}
	}
	return Actor{UserID: ac.UserID, CompanyID: ac.CompanyID}
}

// ListTickets handles GET /tickets with optional status, projectId and
// companyId query parameters.
func (h *Handlers) ListTickets(w http.ResponseWriter, r *http.Request) {
	projectID, err := httputil.ParseQueryInt64(r, "projectId", 0)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	companyID, err := httputil.ParseQueryInt64(r, "companyId", 0)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	filter := Filter{
		Actor:     actorOf(r.Context()),
		Status:    Status(httputil.ParseQueryString(r, "status", "")),
		ProjectID: projectID,
		CompanyID: companyID,
	}

	tickets, err := h.service.ListTickets(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, tickets)
}

// CreateTicket handles POST /tickets
func (h *Handlers) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req TicketRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	ticket, err := h.service.CreateTicket(r.Context(), actorOf(r.Context()), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Ticket created successfully!", ticket)
}

// UpdateTicket handles POST /tickets/update
func (h *Handlers) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	var req UpdateTicketRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.service.UpdateTicket(r.Context(), actorOf(r.Context()), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Ticket updated successfully!", nil)
}

// GetDetail handles GET /tickets/{id}
func (h *Handlers) GetDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.service.GetDetail(r.Context(), actorOf(r.Context()), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, detail)
}

// GetAttachment handles GET /tickets/attachment/{id}. The file is returned
// base64 encoded unless ?download=1 asks for the raw bytes.
func (h *Handlers) GetAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	a, err := h.service.Attachment(r.Context(), actorOf(r.Context()), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
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

// AddComment handles POST /tickets/{id}/comments
func (h *Handlers) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	comment, err := h.service.AddComment(r.Context(), actorOf(r.Context()), id, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Comment added!", comment)
}

// workflow decodes a request body of type T and applies a workflow action.
func workflow[T any](message string,
	fn func(ctx context.Context, actor Actor, id int64, req T) (*HistoryEntry, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := httputil.ParsePathInt64OrError(w, r, "id")
		if !ok {
			return
		}
		var req T
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
		entry, err := fn(r.Context(), actorOf(r.Context()), id, req)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		httputil.WriteMessage(w, message, entry)
	}
}

// Assign handles POST /tickets/{id}/assign
func (h *Handlers) Assign(w http.ResponseWriter, r *http.Request) {
	workflow("Ticket assigned successfully!", h.service.Assign)(w, r)
}

// Respond handles POST /tickets/{id}/respond
func (h *Handlers) Respond(w http.ResponseWriter, r *http.Request) {
	workflow("Response details saved successfully!", h.service.Respond)(w, r)
}

// RootCause handles POST /tickets/{id}/root-cause
func (h *Handlers) RootCause(w http.ResponseWriter, r *http.Request) {
	workflow("Root cause saved successfully!", h.service.RootCause)(w, r)
}

// Resolve handles POST /tickets/{id}/resolve
func (h *Handlers) Resolve(w http.ResponseWriter, r *http.Request) {
	workflow("Ticket has been resolved!", h.service.Resolve)(w, r)
}

// Reopen handles POST /tickets/{id}/reopen
func (h *Handlers) Reopen(w http.ResponseWriter, r *http.Request) {
	workflow("Ticket has been reopened!", h.service.Reopen)(w, r)
}

// ChangeStatus handles POST /tickets/{id}/status
func (h *Handlers) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	workflow("Ticket status updated successfully!", h.service.ChangeStatus)(w, r)
}
