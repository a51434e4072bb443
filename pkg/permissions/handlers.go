package permissions

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/helpdesk/pkg/httputil"
)

// Handlers provides HTTP handlers for roles and permission matrices
type Handlers struct {
	service *Service
	guard   *Guard
}

// NewHandlers creates permission handlers
func NewHandlers(service *Service, guard *Guard) *Handlers {
	return &Handlers{service: service, guard: guard}
}

// RegisterRoutes registers role and permission routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	require := h.guard.RequirePermission

	router.Handle("/roles", h.guard.Attach(http.HandlerFunc(h.ListRoles))).Methods("GET")
	router.Handle("/roles", require(PagePermissions, ActionCreate)(http.HandlerFunc(h.CreateRole))).Methods("POST")
	router.Handle("/roles/update", require(PagePermissions, ActionEdit)(http.HandlerFunc(h.UpdateRole))).Methods("POST")
	router.Handle("/roles/delete", require(PagePermissions, ActionEdit)(http.HandlerFunc(h.DeleteRole))).Methods("POST")

	router.Handle("/permissions/catalog", h.guard.Attach(http.HandlerFunc(h.GetCatalog))).Methods("GET")
	router.Handle("/permissions", require(PagePermissions, ActionEdit)(http.HandlerFunc(h.GetPermissions))).Methods("GET")
	router.Handle("/permissions", require(PagePermissions, ActionEdit)(http.HandlerFunc(h.SavePermissions))).Methods("POST")
}

// ListRoles handles GET /roles. With grouped=true the roles are grouped by
// company name.
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	companyID, err := httputil.ParseQueryInt64(r, "companyId", 0)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if companyID > 0 {
		roles = FilterRoles(roles, companyID)
	}

	if httputil.ParseQueryString(r, "grouped", "") == "true" {
		httputil.WriteData(w, GroupRoles(roles))
		return
	}
	httputil.WriteData(w, roles)
}

// CreateRole handles POST /roles
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := h.service.CreateRole(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Role created successfully!", role)
}

// UpdateRole handles POST /roles/update
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.UpdateRole(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Role updated successfully!", nil)
}

// DeleteRole handles POST /roles/delete
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	var req httputil.ID
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	role, err := h.service.DeleteRole(r.Context(), req.ID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, `Role "`+role.Name+`" deleted.`, nil)
}

// GetCatalog handles GET /permissions/catalog
func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, h.service.Catalog())
}

// storedPermissions is one element of the GET /permissions data array.
type storedPermissions struct {
	CompanyID   int64  `json:"company_id"`
	RoleID      int64  `json:"role_id"`
	Permissions Matrix `json:"permissions"`
}

// GetPermissions handles GET /permissions?companyId=&roleId=
func (h *Handlers) GetPermissions(w http.ResponseWriter, r *http.Request) {
	companyID, err := httputil.ParseQueryInt64(r, "companyId", 0)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	roleID, err := httputil.ParseQueryInt64(r, "roleId", 0)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if companyID <= 0 || roleID <= 0 {
		httputil.WriteBadRequest(w, "companyId and roleId are required")
		return
	}

	m, err := h.service.Matrix(r.Context(), companyID, roleID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, []storedPermissions{{CompanyID: companyID, RoleID: roleID, Permissions: m}})
}

// SavePermissions handles POST /permissions
func (h *Handlers) SavePermissions(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	m, err := h.service.Save(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Permissions updated successfully", storedPermissions{
		CompanyID:   req.CompanyID,
		RoleID:      req.RoleID,
		Permissions: m,
	})
}
