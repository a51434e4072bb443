package dashboard

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
	"github.com/platinummonkey/helpdesk/pkg/tickets"
)

// Handlers serves dashboard routes
type Handlers struct {
	service *Service
	guard   *permissions.Guard
}

// NewHandlers creates dashboard handlers
func NewHandlers(service *Service, guard *permissions.Guard) *Handlers {
	return &Handlers{service: service, guard: guard}
}

// RegisterRoutes registers dashboard routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/dashboard/dashboard-stats", h.guard.Attach(http.HandlerFunc(h.GetStats))).Methods("GET")
}

// GetStats handles GET /dashboard/dashboard-stats with optional companyId
// and projectId query parameters.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
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
	filter := Filter{CompanyID: companyID, ProjectID: projectID}
	if ac := auth.FromContext(r.Context()); ac != nil {
		filter.Viewer = tickets.Actor{UserID: ac.UserID, CompanyID: ac.CompanyID}
	}

	stats, err := h.service.Stats(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, stats)
}
