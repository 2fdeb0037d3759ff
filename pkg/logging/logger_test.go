package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestStructuredLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("checkin-test", "1.2.3", InfoLevel)
	logger.SetOutput(&buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")
	logger.Info(ctx, "[TEST] hello", Fields{"checkins": 3})
	logger.Debug(ctx, "[TEST] hidden", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "[TEST] hello", entry["message"])
	assert.Equal(t, "checkin-test", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "req-42", entry["request_id"])

	fields, ok := entry["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 3, fields["checkins"])
}

func TestStructuredLogger_ErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("checkin-test", "1.2.3", DebugLevel)
	logger.SetOutput(&buf)

	logger.Error(context.Background(), "[TEST_ERROR] failed", Fields{}, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0]["level"])
	assert.Equal(t, "boom", entries[0]["error"])
}

func TestStructuredLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("checkin-test", "1.2.3", ErrorLevel)
	logger.SetOutput(&buf)

	logger.Warn(context.Background(), "[TEST] suppressed", nil)
	assert.Empty(t, buf.String())

	logger.SetLevel(WarnLevel)
	logger.Warn(context.Background(), "[TEST] shown", nil)
	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestContextLogger_MergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("checkin-test", "1.2.3", InfoLevel)
	logger.SetOutput(&buf)

	scoped := logger.WithFields(Fields{"report_id": "abc", "stage": "base"})
	scoped.Info(context.Background(), "[TEST] scoped", Fields{"stage": "override"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	fields := entries[0]["fields"].(map[string]interface{})
	assert.Equal(t, "abc", fields["report_id"])
	assert.Equal(t, "override", fields["stage"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "ParseLevel(%q)", tt.input)
	}
}
