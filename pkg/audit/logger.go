package audit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/contextkeys"
	"github.com/platinummonkey/helpdesk/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes any buffered events
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context, or a no-op logger.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NoOpLogger{}
}

// NoOpLogger discards every event.
type NoOpLogger struct{}

func (NoOpLogger) Log(context.Context, *Event) error { return nil }
func (NoOpLogger) Close() error                      { return nil }

// NewEvent builds an event with the actor and request fields populated from
// ctx and r. r may be nil.
func NewEvent(ctx context.Context, r *http.Request, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}

	if ac := auth.FromContext(ctx); ac != nil {
		userID, companyID := ac.UserID, ac.CompanyID
		event.UserID = &userID
		event.UserEmail = ac.Email
		if companyID > 0 {
			event.CompanyID = &companyID
		}
	}

	if r != nil {
		event.IPAddress = clientIP(r)
		event.UserAgent = r.UserAgent()
		event.Method = r.Method
		event.Path = r.URL.Path
	}
	return event
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// Record logs a successful mutation with the context's audit logger. Audit
// failures are logged and never fail the caller.
func Record(ctx context.Context, eventType EventType, resourceType ResourceType, resourceID string, message string, changes *ChangeDetails) {
	event := NewEvent(ctx, nil, eventType, EventStatusSuccess)
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	event.Changes = changes
	emit(ctx, event)
}

// RecordFailure logs a failed event with an error
func RecordFailure(ctx context.Context, eventType EventType, message string, err error) {
	event := NewEvent(ctx, nil, eventType, EventStatusFailure)
	event.Message = message
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	emit(ctx, event)
}

// RecordDenied logs an access denied event
func RecordDenied(ctx context.Context, r *http.Request, resourceType ResourceType, resourceID string, reason string) {
	event := NewEvent(ctx, r, EventTypeAuthzAccessDenied, EventStatusDenied)
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.StatusCode = http.StatusForbidden
	event.Message = "Access denied: " + reason
	emit(ctx, event)
}

func emit(ctx context.Context, event *Event) {
	if err := FromContext(ctx).Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).
			WithField("event_type", string(event.EventType)).
			Warn("failed to record audit event")
	}
}
