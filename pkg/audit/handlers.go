package audit

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/helpdesk/pkg/httputil"
)

const defaultSearchLimit = 100

// Store provides methods for querying audit logs
type Store interface {
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)
	Get(ctx context.Context, id int64) (*Event, error)
}

// Handlers provides HTTP handlers for audit log API
type Handlers struct {
	store Store
	guard func(http.Handler) http.Handler
}

// NewHandlers creates audit handlers. guard wraps every route, typically a
// permission check; nil leaves the routes unguarded.
func NewHandlers(store Store, guard func(http.Handler) http.Handler) *Handlers {
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	return &Handlers{store: store, guard: guard}
}

// RegisterRoutes registers audit log routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/audit/events", h.guard(http.HandlerFunc(h.listEvents))).Methods("GET")
	router.Handle("/audit/events/{id}", h.guard(http.HandlerFunc(h.getEvent))).Methods("GET")
	router.Handle("/audit/export", h.guard(http.HandlerFunc(h.exportEvents))).Methods("GET")
}

// listEvents handles GET /audit/events
func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, events)
}

// getEvent handles GET /audit/events/{id}
func (h *Handlers) getEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	event, err := h.store.Get(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, event)
}

// exportEvents handles GET /audit/export
func (h *Handlers) exportEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	format := ExportFormat(httputil.ParseQueryString(r, "format", string(ExportFormatJSON)))

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	data, err := Export(events, format)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	switch format {
	case ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-events.csv")
	case ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-events.ndjson")
	case ExportFormatXLSX:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-events.xlsx")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-events.json")
	}
	w.Write(data)
}

// parseFilter parses search filter from query parameters
func parseFilter(r *http.Request) (SearchFilter, error) {
	var filter SearchFilter

	start, err := httputil.ParseQueryDate(r, "start_time")
	if err != nil {
		return filter, err
	}
	if !start.IsZero() {
		filter.StartTime = &start
	}
	end, err := httputil.ParseQueryDate(r, "end_time")
	if err != nil {
		return filter, err
	}
	if !end.IsZero() {
		filter.EndTime = &end
	}

	userID, err := httputil.ParseQueryInt64(r, "user_id", 0)
	if err != nil {
		return filter, err
	}
	if userID > 0 {
		filter.UserID = &userID
	}
	companyID, err := httputil.ParseQueryInt64(r, "company_id", 0)
	if err != nil {
		return filter, err
	}
	if companyID > 0 {
		filter.CompanyID = &companyID
	}

	for _, et := range strings.Split(httputil.ParseQueryString(r, "event_types", ""), ",") {
		if et = strings.TrimSpace(et); et != "" {
			filter.EventTypes = append(filter.EventTypes, EventType(et))
		}
	}
	if status := httputil.ParseQueryString(r, "status", ""); status != "" {
		s := EventStatus(status)
		filter.Status = &s
	}
	filter.ResourceType = ResourceType(httputil.ParseQueryString(r, "resource_type", ""))
	filter.ResourceID = httputil.ParseQueryString(r, "resource_id", "")

	limit, err := httputil.ParseQueryInt64(r, "limit", defaultSearchLimit)
	if err != nil {
		return filter, err
	}
	offset, err := httputil.ParseQueryInt64(r, "offset", 0)
	if err != nil {
		return filter, err
	}
	filter.Limit = int(limit)
	filter.Offset = int(offset)
	return filter, nil
}
