package companies

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
)

// Handlers provides HTTP handlers for companies and their addresses
type Handlers struct {
	service *PostgresService
	guard   *permissions.Guard
}

// NewHandlers creates company handlers
func NewHandlers(service *PostgresService, guard *permissions.Guard) *Handlers {
	return &Handlers{service: service, guard: guard}
}

// RegisterRoutes registers company routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	require := func(action permissions.Action, fn http.HandlerFunc) http.Handler {
		return h.guard.RequirePermission(permissions.PageCompanies, action)(fn)
	}

	router.Handle("/companies", h.guard.Attach(http.HandlerFunc(h.ListCompanies))).Methods("GET")
	router.Handle("/companies", require(permissions.ActionCreate, h.CreateCompany)).Methods("POST")
	router.Handle("/companies/update", require(permissions.ActionEdit, h.UpdateCompany)).Methods("POST")
	router.Handle("/companies/status", require(permissions.ActionStatusChange, h.SetCompanyStatus)).Methods("POST")
	router.Handle("/companies/link", require(permissions.ActionLink, h.Link)).Methods("POST")
	router.Handle("/companies/unlink", require(permissions.ActionLink, h.Unlink)).Methods("POST")
	router.Handle("/companies/users", h.guard.Attach(http.HandlerFunc(h.ListMembers))).Methods("GET", "POST")

	router.Handle("/companies/{id:[0-9]+}/addresses", h.guard.Attach(http.HandlerFunc(h.ListLocations))).Methods("GET")
	router.Handle("/companies/{id:[0-9]+}/addresses", require(permissions.ActionLocation, h.CreateLocation)).Methods("POST")
	router.Handle("/companies/addresses/update", require(permissions.ActionLocation, h.UpdateLocation)).Methods("POST")
	router.Handle("/companies/addresses/status", require(permissions.ActionLocation, h.SetLocationStatus)).Methods("POST")
	router.Handle("/companies/addresses/delete", require(permissions.ActionLocation, h.DeleteLocation)).Methods("POST")
}

// ListCompanies handles GET /companies
func (h *Handlers) ListCompanies(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())
	companies, err := h.service.ListCompanies(r.Context(), ac.CompanyID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, companies)
}

// CreateCompany handles POST /companies
func (h *Handlers) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CompanyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	company, err := h.service.CreateCompany(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Company created successfully!", company)
}

// UpdateCompany handles POST /companies/update
func (h *Handlers) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	var req UpdateCompanyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.service.UpdateCompany(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Company updated successfully!", nil)
}

// SetCompanyStatus handles POST /companies/status
func (h *Handlers) SetCompanyStatus(w http.ResponseWriter, r *http.Request) {
	var req httputil.StatusChange
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.SetCompanyActive(r.Context(), req.ID, req.IsActive == 1); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Company status updated successfully!", nil)
}

// Link handles POST /companies/link
func (h *Handlers) Link(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.service.Link(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Companies linked successfully!", nil)
}

// Unlink handles POST /companies/unlink
func (h *Handlers) Unlink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.service.Unlink(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Companies unlinked successfully!", nil)
}

// ListMembers handles /companies/users. The company comes from the
// companyId query parameter or, for POST, the request body.
func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	companyID, err := httputil.ParseQueryInt64(r, "companyId", 0)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if r.Method == http.MethodPost {
		var req CompanyUsersRequest
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
		companyID = req.CompanyID
	}
	if companyID <= 0 {
		httputil.WriteBadRequest(w, "companyId is required")
		return
	}

	members, err := h.service.ListMembers(r.Context(), companyID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, members)
}

// ListLocations handles GET /companies/{id}/addresses
func (h *Handlers) ListLocations(w http.ResponseWriter, r *http.Request) {
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	locations, err := h.service.ListLocations(r.Context(), companyID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, locations)
}

// CreateLocation handles POST /companies/{id}/addresses
func (h *Handlers) CreateLocation(w http.ResponseWriter, r *http.Request) {
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req LocationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	location, err := h.service.CreateLocation(r.Context(), companyID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Address added successfully!", location)
}

// UpdateLocation handles POST /companies/addresses/update
func (h *Handlers) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req UpdateLocationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.service.UpdateLocation(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Address updated successfully!", nil)
}

// SetLocationStatus handles POST /companies/addresses/status
func (h *Handlers) SetLocationStatus(w http.ResponseWriter, r *http.Request) {
	var req LocationStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.service.SetLocationActive(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Address status updated successfully!", nil)
}

// DeleteLocation handles POST /companies/addresses/delete
func (h *Handlers) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	var req httputil.ID
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.DeleteLocation(r.Context(), req.ID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Address deleted successfully!", nil)
}
