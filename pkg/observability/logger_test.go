package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/contextkeys"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		assert.Zero(t, buf.Len())
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		entry := decodeLine(t, &buf)
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "info message", entry["msg"])
	})

	t.Run("warn and error logged", func(t *testing.T) {
		buf.Reset()
		logger.Warnf("warn %d", 1)
		assert.NotZero(t, buf.Len())
		buf.Reset()
		logger.Error("error message")
		assert.NotZero(t, buf.Len())
	})
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithField("key", "value").
		WithFields(map[string]interface{}{"page": "Tickets"}).
		WithError(errors.New("boom")).
		Info("message")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "Tickets", entry["page"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_SetLevelAppliesToDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger(WarnLevel, &buf)
	child := root.WithField("component", "jobs")

	child.Info("hidden")
	assert.Zero(t, buf.Len())

	root.SetLevel(DebugLevel)
	child.Debug("shown")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "jobs", entry["component"])
}

func TestLogger_WithNilErrorReturnsSameLogger(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	assert.Same(t, logger, logger.WithError(nil))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = contextkeys.WithRequestID(ctx, "req-1")
	ctx = contextkeys.WithCaller(ctx, contextkeys.Caller{UserID: 42, CompanyID: 3})

	FromContext(ctx).Info("hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.EqualValues(t, 42, entry["user_id"])
	assert.EqualValues(t, 3, entry["company_id"])
}

func TestGetLogger_Default(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))
}
