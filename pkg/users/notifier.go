package users

import (
	"context"

	"github.com/platinummonkey/helpdesk/pkg/observability"
)

// Notifier delivers password reset tokens to users.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, name, token string) error
}

// LogNotifier writes reset tokens to the log. It stands in for mail
// delivery in development deployments.
type LogNotifier struct {
	logger *observability.Logger
}

// NewLogNotifier creates a notifier that logs with logger.
func NewLogNotifier(logger *observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, email, name, token string) error {
	n.logger.WithFields(map[string]interface{}{
		"email":       email,
		"name":        name,
		"reset_token": token,
	}).Info("password reset requested")
	return nil
}
