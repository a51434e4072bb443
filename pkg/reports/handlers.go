package reports

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/permissions"
	"github.com/platinummonkey/helpdesk/pkg/tickets"
)

// Handlers serves the ticket report routes
type Handlers struct {
	lister  Lister
	guard   *permissions.Guard
	metrics *observability.Metrics
	otel    *observability.OTelMetrics
	now     func() time.Time
}

// NewHandlers creates report handlers. metrics may be nil.
func NewHandlers(lister Lister, guard *permissions.Guard, metrics *observability.Metrics) *Handlers {
	return &Handlers{lister: lister, guard: guard, metrics: metrics, now: time.Now}
}

// WithOTel records export timings on m as well.
func (h *Handlers) WithOTel(m *observability.OTelMetrics) *Handlers {
	h.otel = m
	return h
}

// RegisterRoutes registers report routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	view := func(fn http.HandlerFunc) http.Handler {
		return h.guard.RequirePermission(permissions.PageTickets, permissions.ActionView)(fn)
	}
	router.Handle("/tickets/ticket-report", view(h.Report)).Methods("POST")
	router.Handle("/tickets/ticket-report/export", view(h.Export)).Methods("POST")
}

func actorOf(r *http.Request) tickets.Actor {
	ac := auth.FromContext(r.Context())
	if ac == nil {
		return tickets.Actor{}
	}
	return tickets.Actor{UserID: ac.UserID, CompanyID: ac.CompanyID}
}

// Report handles POST /tickets/ticket-report
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	var f Filter
	if !httputil.ParseJSONOrError(w, r, &f) {
		return
	}
	rows, err := Build(r.Context(), h.lister, actorOf(r), f)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteData(w, rows)
}

// Export handles POST /tickets/ticket-report/export?format=xlsx|pdf. The
// body is the same filter as the report.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	format := Format(httputil.ParseQueryString(r, "format", string(FormatExcel)))
	if format != FormatExcel && format != FormatPDF {
		httputil.WriteAppError(w, r, apperr.Validation("format must be xlsx or pdf"))
		return
	}
	var f Filter
	if !httputil.ParseJSONOrError(w, r, &f) {
		return
	}
	criteria, err := f.Criteria(actorOf(r))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	list, err := h.lister.ListTickets(r.Context(), criteria)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if len(list) == 0 {
		httputil.WriteAppError(w, r, apperr.Validation("No data available to export."))
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if format == FormatPDF {
		err = WritePDF(&buf, list)
	} else {
		err = WriteExcel(&buf, list)
	}
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ExportsTotal.WithLabelValues(string(format)).Inc()
	}
	h.otel.RecordExport(r.Context(), string(format), len(list), int64(buf.Len()), time.Since(start))
	name := Filename(format, h.now())
	audit.Record(r.Context(), audit.EventTypeAccessExport, audit.ResourceTypeReport, name,
		"ticket report exported", &audit.ChangeDetails{After: map[string]interface{}{"rows": len(list), "format": string(format)}})

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
