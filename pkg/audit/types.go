package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin         EventType = "auth.login"
	EventTypeAuthLoginFailed   EventType = "auth.login_failed"
	EventTypeAuthLogout        EventType = "auth.logout"
	EventTypeAuthResetRequest  EventType = "auth.reset_request"
	EventTypeAuthPasswordReset EventType = "auth.password_reset"

	// Authorization events
	EventTypeAuthzAccessDenied      EventType = "authz.access_denied"
	EventTypeAuthzPermissionsUpdate EventType = "authz.permissions_update"
	EventTypeAuthzRoleCreate        EventType = "authz.role_create"
	EventTypeAuthzRoleUpdate        EventType = "authz.role_update"
	EventTypeAuthzRoleDelete        EventType = "authz.role_delete"

	// Data mutation events
	EventTypeDataCreate       EventType = "data.create"
	EventTypeDataUpdate       EventType = "data.update"
	EventTypeDataDelete       EventType = "data.delete"
	EventTypeDataStatusChange EventType = "data.status_change"
	EventTypeDataLink         EventType = "data.link"
	EventTypeDataUnlink       EventType = "data.unlink"
	EventTypeDataAssign       EventType = "data.assign"
	EventTypeDataUnassign     EventType = "data.unassign"
	EventTypeDataFileUpload   EventType = "data.file_upload"

	// Ticket workflow events
	EventTypeTicketTransition EventType = "ticket.transition"

	// Read/access events for sensitive operations
	EventTypeAccessExport EventType = "access.export"
	EventTypeHTTPRequest  EventType = "http.request"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeCompany       ResourceType = "company"
	ResourceTypeLocation      ResourceType = "location"
	ResourceTypeProject       ResourceType = "project"
	ResourceTypeUser          ResourceType = "user"
	ResourceTypeTicket        ResourceType = "ticket"
	ResourceTypePurchaseOrder ResourceType = "purchase_order"
	ResourceTypeInvoice       ResourceType = "invoice"
	ResourceTypeRole          ResourceType = "role"
	ResourceTypePermission    ResourceType = "permission"
	ResourceTypeReport        ResourceType = "report"
	ResourceTypeAttachment    ResourceType = "attachment"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID    *int64 `json:"user_id,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
	CompanyID *int64 `json:"company_id,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	// Before/after values for updates
	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID    *int64
	CompanyID *int64

	EventTypes []EventType
	Status     *EventStatus

	ResourceType ResourceType
	ResourceID   string

	Limit  int
	Offset int
}

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
	ExportFormatXLSX   ExportFormat = "xlsx"
)
