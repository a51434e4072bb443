// Package contextkeys defines the request-scoped values shared between
// packages that cannot import each other.
//
// auth stores the caller, httputil the request id and permissions the
// resolved matrix. observability and audit read the caller's ids through
// Caller so log lines and audit events carry them without importing auth.
package contextkeys

import "context"

// Key is the type of every key in this package.
type Key string

const (
	// AuthKey holds *auth.AuthContext.
	AuthKey Key = "auth_context"
	// RequestIDKey holds the request id string.
	RequestIDKey Key = "request_id"
	// CallerKey holds a Caller.
	CallerKey Key = "caller"
	// LoggerKey holds *observability.Logger.
	LoggerKey Key = "logger"
	// AuditLoggerKey holds audit.Logger.
	AuditLoggerKey Key = "audit_logger"
	// MatrixKey holds the caller's permissions.Matrix.
	MatrixKey Key = "permission_matrix"
)

// Caller identifies the signed-in user and the company whose data they see.
type Caller struct {
	UserID    int64
	CompanyID int64
}

func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, CallerKey, c)
}

func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

func WithMatrix(ctx context.Context, matrix interface{}) context.Context {
	return context.WithValue(ctx, MatrixKey, matrix)
}

// GetRequestID returns the request id, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// GetCaller returns the caller and whether one was stored.
func GetCaller(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(CallerKey).(Caller)
	return c, ok
}
