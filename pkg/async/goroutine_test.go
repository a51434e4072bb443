package async

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/observability"
)

func testLogger() (*observability.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return observability.NewLogger(observability.DebugLevel, &buf), &buf
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
}

func TestSafeGo_Success(t *testing.T) {
	logger, buf := testLogger()
	executed := atomic.Bool{}

	wait(t, SafeGo(context.Background(), time.Second, logger, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	}))

	assert.True(t, executed.Load())
	assert.Empty(t, buf.String())
}

func TestSafeGo_WithError(t *testing.T) {
	logger, buf := testLogger()

	wait(t, SafeGo(context.Background(), time.Second, logger, "test task", func(ctx context.Context) error {
		return errors.New("test error")
	}))

	assert.Contains(t, buf.String(), "test error")
	assert.Contains(t, buf.String(), "test task")
}

func TestSafeGo_Timeout(t *testing.T) {
	logger, buf := testLogger()
	completed := atomic.Bool{}

	wait(t, SafeGo(context.Background(), 20*time.Millisecond, logger, "slow task", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			completed.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	assert.False(t, completed.Load())
	assert.Contains(t, buf.String(), "deadline exceeded")
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	logger, buf := testLogger()

	wait(t, SafeGo(context.Background(), time.Second, logger, "test task", func(ctx context.Context) error {
		panic("test panic")
	}))

	assert.Contains(t, buf.String(), "test panic")
}

func TestSafeGo_ContextCancellation(t *testing.T) {
	logger, _ := testLogger()
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	done := SafeGo(ctx, 5*time.Second, logger, "test task", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	cancel()
	wait(t, done)
}

func TestGo_StopsWithContext(t *testing.T) {
	logger, _ := testLogger()
	ctx, cancel := context.WithCancel(context.Background())
	ticks := atomic.Int32{}

	done := Go(ctx, logger, "loop", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
				ticks.Add(1)
			}
		}
	})
	require.Eventually(t, func() bool { return ticks.Load() > 2 }, time.Second, time.Millisecond)
	cancel()
	wait(t, done)
}

func TestGo_PanicRecovery(t *testing.T) {
	logger, buf := testLogger()
	wait(t, Go(context.Background(), logger, "loop", func(ctx context.Context) {
		panic("boom")
	}))
	assert.Contains(t, buf.String(), "boom")
}
