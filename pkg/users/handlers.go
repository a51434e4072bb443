package users

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
)

// Handlers provides HTTP handlers for users and authentication
type Handlers struct {
	users     *PostgresService
	auth      *AuthService
	dropdowns *DropdownLoader
	guard     *permissions.Guard
}

// NewHandlers creates user handlers
func NewHandlers(users *PostgresService, authService *AuthService, dropdowns *DropdownLoader, guard *permissions.Guard) *Handlers {
	return &Handlers{users: users, auth: authService, dropdowns: dropdowns, guard: guard}
}

// RegisterPublicRoutes registers the routes that need no token.
func (h *Handlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.Login).Methods("POST")
	router.HandleFunc("/auth/forgot-password", h.ForgotPassword).Methods("POST")
	router.HandleFunc("/auth/reset-password", h.ResetPassword).Methods("POST")
}

// RegisterRoutes registers the authenticated user routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	require := func(action permissions.Action, fn http.HandlerFunc) http.Handler {
		return h.guard.RequirePermission(permissions.PageUsers, action)(fn)
	}

	router.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	router.Handle("/auth/signup", require(permissions.ActionCreate, h.CreateUser)).Methods("POST")
	router.Handle("/auth/update", require(permissions.ActionEdit, h.UpdateUser)).Methods("POST")
	router.Handle("/auth/delete", require(permissions.ActionDelete, h.DeleteUser)).Methods("POST")
	router.Handle("/auth/status", require(permissions.ActionStatusChange, h.SetStatus)).Methods("POST")
	router.Handle("/auth/dropdown-values", h.guard.Attach(http.HandlerFunc(h.DropdownValues))).Methods("GET")
	router.Handle("/users", h.guard.Attach(http.HandlerFunc(h.ListUsers))).Methods("GET")
}

// Login handles POST /auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	result, err := h.auth.Login(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Login successful!", result)
}

// Logout handles POST /auth/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Logged out successfully!", nil)
}

// ForgotPassword handles POST /auth/forgot-password
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if _, err := h.auth.ForgotPassword(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, ResetRequestedMessage, nil)
}

// ResetPassword handles POST /auth/reset-password
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Password has been reset successfully!", nil)
}

// CreateUser handles POST /auth/signup
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	user, err := h.users.CreateUser(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "User created successfully!", user)
}

// UpdateUser handles POST /auth/update
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.users.UpdateUser(r.Context(), req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "User updated successfully!", nil)
}

// DeleteUser handles POST /auth/delete
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req httputil.ID
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.users.DeleteUser(r.Context(), req.ID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "User deleted successfully!", nil)
}

// SetStatus handles POST /auth/status
func (h *Handlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req httputil.StatusChange
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.users.SetActive(r.Context(), req.ID, req.IsActive == 1); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "User status updated successfully!", nil)
}

// ListUsers handles GET /users
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	companyID, err := httputil.ParseQueryInt64(r, "companyId", 0)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	users, err := h.users.ListUsers(r.Context(), Filter{
		ViewerCompanyID: auth.FromContext(r.Context()).CompanyID,
		CompanyID:       companyID,
	})
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, users)
}

// DropdownValues handles GET /auth/dropdown-values
func (h *Handlers) DropdownValues(w http.ResponseWriter, r *http.Request) {
	values, err := h.dropdowns.Load(r.Context(), auth.FromContext(r.Context()).CompanyID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, values)
}
