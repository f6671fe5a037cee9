package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_TerminalLine(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Out: &buf, NoColor: true})
	require.NoError(t, err)

	l.Warn("booking", "slot lock unavailable")

	line := buf.String()
	assert.Contains(t, line, "WARN")
	assert.Contains(t, line, "[BOOKING   ]")
	assert.Contains(t, line, "slot lock unavailable")
	assert.Contains(t, line, "logger_test.go")
}

func TestLogger_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Dir: dir, Name: "test", Out: &bytes.Buffer{}, NoColor: true})
	require.NoError(t, err)

	l.LogBooking("RESERVE", 7, "booking 3 created")
	l.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "test-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e LogEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}

	var found bool
	for _, e := range entries {
		if e.Category == "BOOKING" {
			found = true
			assert.Equal(t, "INFO", e.Level)
			assert.Equal(t, "[RESERVE] event 7 - booking 3 created", e.Message)
		}
	}
	assert.True(t, found)
}

func TestLogger_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Out: &buf, NoColor: true, MinLevel: WARN})
	require.NoError(t, err)

	l.Debug("db", "query plan")
	l.Info("api", "GET /events")
	assert.Empty(t, buf.String())

	l.Error("db", "connection lost")
	assert.Contains(t, buf.String(), "connection lost")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" Warn "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
	assert.Equal(t, "FATAL", FATAL.String())
}
