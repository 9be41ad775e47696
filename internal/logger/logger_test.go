package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_TerminalLine(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Output: &buf})
	require.NoError(t, err)

	l.Warn("ledger", "counter at ceiling")

	line := buf.String()
	assert.Contains(t, line, "WARN")
	assert.Contains(t, line, "[LEDGER    ]")
	assert.Contains(t, line, "counter at ceiling")
	assert.Contains(t, line, "logger_test.go")
}

func TestLogger_FileIsJSONLines(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l, err := New(Options{Dir: dir, Service: "rail", Output: &buf})
	require.NoError(t, err)

	l.LogBooking("CREATE", 42, "seat 5 on 2026-10-16")
	require.NoError(t, l.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "rail-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "BOOKING", entry.Category)
	assert.Equal(t, "[CREATE] 42 - seat 5 on 2026-10-16", entry.Message)
}

func TestLogger_NilAndDiscardAreSafe(t *testing.T) {
	var l *Logger
	l.Info("x", "y")
	assert.NoError(t, l.Close())

	Discard().Error("x", "y")
}
