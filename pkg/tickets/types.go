package tickets

import (
	"time"

	"github.com/platinummonkey/helpdesk/pkg/attachments"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
)

// Status is a ticket lifecycle state.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusReopened   Status = "Reopened"
	StatusClosed     Status = "Closed"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusReopened, StatusClosed}

// Action names a workflow step recorded in history.
type Action string

const (
	ActionCreate       Action = "create"
	ActionAssign       Action = "assign"
	ActionRespond      Action = "respond"
	ActionRootCause    Action = "root_cause"
	ActionResolve      Action = "resolve"
	ActionReopen       Action = "reopen"
	ActionStatusChange Action = "status_change"
)

// Complaint channels.
const (
	ChannelCall     = "Call"
	ChannelMail     = "Mail"
	ChannelWhatsApp = "WhatsApp"
)

// Ticket is a complaint raised against a project location.
type Ticket struct {
	ID                  int64      `json:"id"`
	TicketUID           string     `json:"ticket_uid"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	ProjectID           int64      `json:"project_id"`
	ProjectName         string     `json:"project_name"`
	LocationID          int64      `json:"location_id"`
	LocationName        string     `json:"location_name"`
	CompanyID           int64      `json:"company_id"`
	CompanyName         string     `json:"company_name"`
	Channel             string     `json:"channel"`
	ComplaintBy         string     `json:"complaint_by"`
	ComplaintAt         time.Time  `json:"complaint_at"`
	Status              Status     `json:"status"`
	AssignedTo          *int64     `json:"assigned_to"`
	AssignedToName      string     `json:"assigned_to_name"`
	AssignedAt          *time.Time `json:"assigned_at"`
	FirstRespondedBy    *int64     `json:"first_responded_by"`
	RespondedByName     string     `json:"responded_by_name"`
	FirstRespondedAt    *time.Time `json:"first_responded_at"`
	FirstRespondRemarks string     `json:"first_respond_remarks"`
	RootCause           string     `json:"root_cause"`
	RootCauseProvider   string     `json:"root_cause_provider"`
	RootCauseProvidedAt *time.Time `json:"root_cause_provided_at"`
	ResolvedBy          *int64     `json:"resolved_by"`
	ResolvedByName      string     `json:"resolved_by_name"`
	ResolvedAt          *time.Time `json:"resolved_at"`
	ResolutionSummary   string     `json:"resolution_summary"`
	CreatedBy           int64      `json:"created_by"`
	CreatedByName       string     `json:"created_by_name"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// HistoryEntry is one recorded transition.
type HistoryEntry struct {
	ID            int64     `json:"id"`
	TicketID      int64     `json:"ticket_id"`
	Action        Action    `json:"action"`
	OldStatus     Status    `json:"old_status"`
	NewStatus     Status    `json:"new_status"`
	Remarks       string    `json:"remarks"`
	ChangedBy     int64     `json:"changed_by"`
	ChangedByName string    `json:"changed_by_name"`
	ChangedAt     time.Time `json:"changed_at"`
}

// Assignment records who a ticket was handed to.
type Assignment struct {
	ID             int64     `json:"id"`
	AssignedTo     int64     `json:"assigned_to"`
	AssignedToName string    `json:"assigned_to_name"`
	AssignedBy     int64     `json:"assigned_by"`
	AssignedByName string    `json:"assigned_by_name"`
	AssignedAt     time.Time `json:"assigned_at"`
}

// Comment is a note on a ticket with optional attachments.
type Comment struct {
	ID          int64                     `json:"id"`
	TicketID    int64                     `json:"ticket_id"`
	AuthorID    int64                     `json:"author_id"`
	AuthorName  string                    `json:"author_name"`
	Text        string                    `json:"comment_text"`
	CommentedAt time.Time                 `json:"commented_at"`
	CreatedAt   time.Time                 `json:"created_at"`
	Attachments []*attachments.Attachment `json:"attachments"`
}

// Detail is the payload of GET /tickets/{id}.
type Detail struct {
	Ticket      *Ticket                   `json:"ticket"`
	History     []*HistoryEntry           `json:"history"`
	Assignments []*Assignment             `json:"assignments"`
	Comments    []*Comment                `json:"comments"`
	Attachments []*attachments.Attachment `json:"attachments"`
	IsInternal  bool                      `json:"isInternal"`

	Activity          []Activity      `json:"activity"`
	ResolutionHistory []*HistoryEntry `json:"resolutionHistory"`
	ReopenHistory     []*HistoryEntry `json:"reopenHistory"`
}

// Actor is the caller a ticket operation runs as.
type Actor struct {
	UserID    int64
	CompanyID int64
}

// Filter narrows GET /tickets.
type Filter struct {
	Actor     Actor
	Status    Status
	ProjectID int64
	CompanyID int64

	LocationID int64
	TicketID   int64
	// InvolvedUserID matches tickets the user created, was assigned,
	// responded to, resolved, or moved through any transition.
	InvolvedUserID int64
	AssignedToID   int64
	ResolvedByID   int64
	// ComplaintBy is a case-insensitive substring match.
	ComplaintBy string
	Channel     string
	// From and To bound complaint_at. To is exclusive.
	From time.Time
	To   time.Time
}

// TicketRequest is the body of POST /tickets.
type TicketRequest struct {
	Title         string              `json:"title" validate:"notblank,max=200"`
	Description   string              `json:"description" validate:"notblank"`
	ProjectID     int64               `json:"projectId" validate:"gt=0"`
	LocationID    int64               `json:"locationId" validate:"gt=0"`
	Channel       string              `json:"channel" validate:"oneof=Call Mail WhatsApp"`
	ComplaintBy   string              `json:"complaintBy" validate:"notblank,max=100"`
	ComplaintTime httputil.Timestamp  `json:"complaintTime"`
	Attachment    *attachments.Upload `json:"attachment"`
}

// UpdateTicketRequest is the body of POST /tickets/update.
type UpdateTicketRequest struct {
	ID int64 `json:"id" validate:"gt=0"`
	TicketRequest
}

// AssignRequest is the body of POST /tickets/{id}/assign.
type AssignRequest struct {
	UserID     int64              `json:"userId" validate:"gt=0"`
	AssignedAt httputil.Timestamp `json:"assigned_at"`
}

// CommentRequest is the body of POST /tickets/{id}/comments.
type CommentRequest struct {
	Text        string              `json:"text" validate:"notblank"`
	Attachment  *attachments.Upload `json:"attachment"`
	CommentedAt httputil.Timestamp  `json:"commented_at"`
}

// RespondRequest is the body of POST /tickets/{id}/respond. RespondedBy
// defaults to the caller.
type RespondRequest struct {
	RespondedBy int64              `json:"responded_by"`
	RespondedAt httputil.Timestamp `json:"responded_at"`
	Remarks     string             `json:"respond_remarks" validate:"notblank"`
}

// RootCauseRequest is the body of POST /tickets/{id}/root-cause.
type RootCauseRequest struct {
	RootCause  string             `json:"root_cause" validate:"notblank"`
	Provider   string             `json:"root_cause_provider" validate:"notblank,max=100"`
	ProvidedAt httputil.Timestamp `json:"root_cause_provided_at"`
}

// ResolveRequest is the body of POST /tickets/{id}/resolve.
type ResolveRequest struct {
	Summary    string             `json:"resolution_summary" validate:"notblank"`
	ResolvedAt httputil.Timestamp `json:"resolved_at"`
}

// ReopenRequest is the body of POST /tickets/{id}/reopen.
type ReopenRequest struct {
	Remarks string `json:"remarks" validate:"notblank"`
}

// StatusRequest is the body of POST /tickets/{id}/status.
type StatusRequest struct {
	Status Status `json:"status" validate:"required"`
}
