package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecthub/apiserver/internal/logging"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logging.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logging.ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel("verbose"))
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "warn")

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "projecthub", record["service"])
}

func TestLogErrorIncludesOopsCode(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info")

	logging.LogError(logger, "request failed", oops.Code("INTERNAL").With("operation", "Create").Errorf("boom"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "request failed", record["msg"])
	assert.Equal(t, "INTERNAL", record["code"])
	assert.Contains(t, record["error"], "boom")
}

func TestLogErrorPlainError(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info")

	logging.LogError(logger, "request failed", errors.New("plain"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "plain", record["error"])
	assert.NotContains(t, record, "code")
}

func TestLogErrorFlattensContextAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info")

	err := oops.In("mq").Code("INTERNAL").With("topic", "project.created").Errorf("broker down")
	logging.LogError(logger, "publish event failed", err, slog.String("request_id", "req-1"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, "mq", record["domain"])
	values, ok := record["context"].(map[string]any)
	require.True(t, ok, "context should be a nested object: %v", record)
	assert.Equal(t, "project.created", values["topic"])
}

func TestLogErrorNilLoggerUsesDefault(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	logging.LogError(nil, "boom", errors.New("plain"))
	assert.Contains(t, buf.String(), `"msg":"boom"`)
}
