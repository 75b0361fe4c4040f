package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) Logger {
	return New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogger_ModuleNamesNestAsDottedPath(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf)

	log.Module("scanner").Module("readiness").Info("checked file")

	require.Contains(t, buf.String(), `"module":"scanner.readiness"`)
	assert.Contains(t, buf.String(), "checked file")
}

func TestLogger_WithFieldsArePersistedAcrossCalls(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf).With(String("known_file_id", "42"))

	log.Warn("retrying")

	require.Contains(t, buf.String(), `"known_file_id":"42"`)
}

func TestLogger_LevelsAreRoutedToTheUnderlyingHandler(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	log.Info("should be filtered out")
	log.Warn("should appear")

	out := buf.String()
	assert.False(t, strings.Contains(out, "should be filtered out"))
	assert.True(t, strings.Contains(out, "should appear"))
}

func TestErrField_CarriesTheUnderlyingError(t *testing.T) {
	f := Err(assertableError{"boom"})
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, assertableError{"boom"}, f.Value)
}

type assertableError struct{ msg string }

func (e assertableError) Error() string { return e.msg }

func TestGlobal_ReturnsTheSameInstanceAcrossCalls(t *testing.T) {
	a := Global()
	b := Global()
	assert.Same(t, a, b)
}
