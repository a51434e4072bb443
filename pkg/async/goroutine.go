package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/platinummonkey/helpdesk/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// The returned channel is closed when fn has returned.
//
// Example:
//
//	async.SafeGo(ctx, 10*time.Second, logger, "reset email", func(ctx context.Context) error {
//	    return notifier.SendReset(ctx, email, link)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, logger *observability.Logger, taskName string, fn func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		if err := run(ctx, fn); err != nil {
			logger.WithField("task", taskName).WithError(err).Error("background task failed")
		}
	}()
	return done
}

// Go runs a long-lived loop in a goroutine with panic recovery and no
// timeout. fn should return when ctx is done.
func Go(ctx context.Context, logger *observability.Logger, taskName string, fn func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := run(ctx, func(ctx context.Context) error {
			fn(ctx)
			return nil
		})
		if err != nil {
			logger.WithField("task", taskName).WithError(err).Error("background loop stopped")
		}
	}()
	return done
}

func run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}
