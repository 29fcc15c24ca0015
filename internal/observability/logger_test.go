package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs points the global logger at a buffer for the duration of the test
func captureLogs(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()
	prevDefault, prevLogger := slog.Default(), logger
	t.Cleanup(func() {
		slog.SetDefault(prevDefault)
		logger = prevLogger
	})

	var buf bytes.Buffer
	initLogger(&buf, level, format)
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry), "log output: %s", buf.String())
	return entry
}

func TestInitLogger_JSONFormat(t *testing.T) {
	buf := captureLogs(t, "info", "json")

	slog.Info("user joined", slog.String("username", "alice"))

	entry := decodeLine(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "user joined", entry["msg"])
	assert.Equal(t, "alice", entry["username"])
}

func TestInitLogger_TextFormat(t *testing.T) {
	buf := captureLogs(t, "info", "text")

	slog.Info("server started", slog.String("port", "5000"))

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, `msg="server started"`)
	assert.Contains(t, out, "port=5000")
}

func TestInitLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
		warnSeen  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := captureLogs(t, tt.level, "text")

			slog.Debug("debug-line")
			slog.Info("info-line")
			slog.Warn("warn-line")

			out := buf.String()
			assert.Equal(t, tt.debugSeen, strings.Contains(out, "debug-line"))
			assert.Equal(t, tt.infoSeen, strings.Contains(out, "info-line"))
			assert.Equal(t, tt.warnSeen, strings.Contains(out, "warn-line"))
		})
	}
}

func TestInitLogger_DebugAddsSource(t *testing.T) {
	buf := captureLogs(t, "debug", "json")

	slog.Debug("with source")

	entry := decodeLine(t, buf)
	assert.Contains(t, entry, "source")
}

func TestFromContext(t *testing.T) {
	buf := captureLogs(t, "info", "json")

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithConnectionID(ctx, "conn-1")

	FromContext(ctx).Info("connected")

	entry := decodeLine(t, buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "conn-1", entry["connection_id"])
}

func TestFromContext_EmptyValuesAreSkipped(t *testing.T) {
	buf := captureLogs(t, "info", "json")

	ctx := WithRequestID(context.Background(), "")
	FromContext(ctx).Info("plain")

	entry := decodeLine(t, buf)
	assert.NotContains(t, entry, "request_id")
	assert.NotContains(t, entry, "connection_id")
}

func TestFromContext_WithoutInit(t *testing.T) {
	prev := logger
	logger = nil
	t.Cleanup(func() { logger = prev })

	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
