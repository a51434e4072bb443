package projects

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
)

// Handlers provides HTTP handlers for projects
type Handlers struct {
	service *PostgresService
	guard   *permissions.Guard
}

// NewHandlers creates project handlers
func NewHandlers(service *PostgresService, guard *permissions.Guard) *Handlers {
	return &Handlers{service: service, guard: guard}
}

// RegisterRoutes registers project routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	require := func(action permissions.Action, fn http.HandlerFunc) http.Handler {
		return h.guard.RequirePermission(permissions.PageProjects, action)(fn)
	}

	router.Handle("/projects", h.guard.Attach(http.HandlerFunc(h.ListProjects))).Methods("GET")
	router.Handle("/projects", require(permissions.ActionCreate, h.CreateProject)).Methods("POST")
	router.Handle("/projects/update", require(permissions.ActionEdit, h.UpdateProject)).Methods("POST")
	router.Handle("/projects/status", require(permissions.ActionStatusChange, h.SetStatus)).Methods("POST")
	router.Handle("/projects/assign", require(permissions.ActionAssign, h.Assign)).Methods("POST")
	router.Handle("/projects/unassign", require(permissions.ActionAssign, h.Unassign)).Methods("POST")
	router.Handle("/projects/{id:[0-9]+}/users", h.guard.Attach(http.HandlerFunc(h.ListUsers))).Methods("GET")
}

// ListProjects handles GET /projects with optional companyId and active
// query parameters.
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	companyID, err := httputil.ParseQueryInt64(r, "companyId", 0)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	filter := Filter{
		ViewerCompanyID: auth.FromContext(r.Context()).CompanyID,
		CompanyID:       companyID,
		ActiveOnly:      httputil.ParseQueryString(r, "active", "") == "true",
	}

	projects, err := h.service.ListProjects(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, projects)
}

// CreateProject handles POST /projects
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	project, err := h.service.CreateProject(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Project created successfully!", project)
}

// UpdateProject handles POST /projects/update
func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.service.UpdateProject(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Project updated successfully!", nil)
}

// SetStatus handles POST /projects/status
func (h *Handlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req httputil.StatusChange
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.SetActive(r.Context(), req.ID, req.IsActive == 1); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Project status updated successfully!", nil)
}

// Assign handles POST /projects/assign
func (h *Handlers) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.service.Assign(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "User assigned successfully!", nil)
}

// Unassign handles POST /projects/unassign
func (h *Handlers) Unassign(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.service.Unassign(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "User unassigned successfully!", nil)
}

// ListUsers handles GET /projects/{id}/users
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	users, err := h.service.ListUsers(r.Context(), projectID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, users)
}
