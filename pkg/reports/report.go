package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
	"github.com/platinummonkey/helpdesk/pkg/tickets"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

// Placeholder is shown for absent values.
const Placeholder = "---"

// Filter is the body of POST /tickets/ticket-report. Every field is
// optional; ids accept "" for unset.
type Filter struct {
	InvolvedUserID httputil.OptionalID `json:"involvedUserId"`
	TicketID       httputil.OptionalID `json:"ticketId"`
	ProjectID      httputil.OptionalID `json:"projectId"`
	CompanyID      httputil.OptionalID `json:"companyId"`
	LocationID     httputil.OptionalID `json:"locationId"`
	StartDate      httputil.Timestamp  `json:"startDate"`
	EndDate        httputil.Timestamp  `json:"endDate"`
	ComplaintBy    string              `json:"complaintBy" validate:"max=100"`
	Channel        string              `json:"channel" validate:"omitempty,oneof=Call Mail WhatsApp"`
	AssignedToID   httputil.OptionalID `json:"assignedToId"`
	ResolvedByID   httputil.OptionalID `json:"resolvedById"`
}

// Criteria validates f and converts it to a ticket filter for actor. The
// end date is inclusive of its whole day.
func (f Filter) Criteria(actor tickets.Actor) (tickets.Filter, error) {
	f.ComplaintBy = strings.TrimSpace(f.ComplaintBy)
	if err := validation.Struct(f); err != nil {
		return tickets.Filter{}, err
	}
	from := startOfDay(f.StartDate.Time)
	var to time.Time
	if !f.EndDate.IsZero() {
		to = startOfDay(f.EndDate.Time).AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return tickets.Filter{}, apperr.ValidationFields(map[string]string{
			"endDate": "endDate cannot be earlier than startDate",
		})
	}
	return tickets.Filter{
		Actor:          actor,
		ProjectID:      int64(f.ProjectID),
		CompanyID:      int64(f.CompanyID),
		LocationID:     int64(f.LocationID),
		TicketID:       int64(f.TicketID),
		InvolvedUserID: int64(f.InvolvedUserID),
		AssignedToID:   int64(f.AssignedToID),
		ResolvedByID:   int64(f.ResolvedByID),
		ComplaintBy:    f.ComplaintBy,
		Channel:        f.Channel,
		From:           from,
		To:             to,
	}, nil
}

func startOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Row is one ticket of the report.
type Row struct {
	*tickets.Ticket
	ResolutionTime string `json:"resolutionTime"`
}

// Lister loads tickets matching a filter.
type Lister interface {
	ListTickets(ctx context.Context, filter tickets.Filter) ([]*tickets.Ticket, error)
}

// Build loads the report rows for actor.
func Build(ctx context.Context, lister Lister, actor tickets.Actor, f Filter) ([]Row, error) {
	criteria, err := f.Criteria(actor)
	if err != nil {
		return nil, err
	}
	list, err := lister.ListTickets(ctx, criteria)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(list))
	for _, t := range list {
		rows = append(rows, Row{Ticket: t, ResolutionTime: ResolutionTime(t)})
	}
	return rows, nil
}

// ResolutionTime renders the time from complaint to resolution as
// "Xd Yh Zm", leaving out zero days and hours. Minutes are always shown and
// a zero duration reads "Instant". Tickets that are not resolved, or whose
// times are missing or out of order, read Placeholder.
func ResolutionTime(t *tickets.Ticket) string {
	if t == nil || t.Status != tickets.StatusResolved || t.ResolvedAt == nil || t.ComplaintAt.IsZero() {
		return Placeholder
	}
	d := t.ResolvedAt.Sub(t.ComplaintAt)
	if d < 0 {
		return Placeholder
	}
	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))
	out := strings.Join(parts, " ")
	if out == "0m" {
		return "Instant"
	}
	return out
}

// FormatDateTime renders t like "2 Jun 2025, 9:30 am", or Placeholder for
// a zero or nil time.
func FormatDateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return Placeholder
	}
	return t.UTC().Format("2 Jan 2006, 3:04 pm")
}

// Format is an export file format.
type Format string

const (
	FormatExcel Format = "xlsx"
	FormatPDF   Format = "pdf"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename returns Tickets_Report_YYYY-MM-DD.<format> for the day of now.
func Filename(format Format, now time.Time) string {
	return fmt.Sprintf("Tickets_Report_%s.%s", now.Format("2006-01-02"), format)
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

func resolvedAt(t *tickets.Ticket) string {
	if t.Status != tickets.StatusResolved {
		return Placeholder
	}
	return FormatDateTime(t.ResolvedAt)
}
