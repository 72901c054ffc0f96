package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dougsko/lorahat/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LevelError, ParseLogLevel("error"))
	assert.Equal(t, LevelInfo, ParseLogLevel("bogus"))
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelWarn, false)

	logger.Info("rx", "dropped")
	logger.Warn("rx", "kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "[WARN] rx: kept")
}

func TestLoggerHumanFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug, false)
	logger.now = fixedClock

	logger.Info("tx", "frame sent", Fields{"seq": 3, "bytes": 42})

	assert.Equal(t, "2026-03-01 12:00:00.000 [INFO] tx: frame sent [bytes=42 seq=3]\n", buf.String())
}

func TestLoggerStructured(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug, true)
	logger.now = fixedClock

	logger.Error("probe", `bad "reply"`, Fields{"hex": "c10009"})

	line := strings.TrimSpace(buf.String())
	assert.Equal(t,
		`{"time":"2026-03-01 12:00:00.000","level":"ERROR","component":"probe","message":"bad \"reply\"","hex":"c10009"}`,
		line)
}

func TestFieldLoggerMerges(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug, false)
	logger.now = fixedClock

	session := logger.WithFields(Fields{"session": "abc"})
	session.Info("rx", "frame", Fields{"src": 101})

	assert.Contains(t, buf.String(), "[session=abc src=101]")
}

func TestNewLoggerWithFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "lorahat.log")

	logger, err := NewLogger(config.LoggingConfig{
		Level:      "info",
		File:       logPath,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})
	require.NoError(t, err)

	logger.Info("main", "hello file")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] main: hello file")
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(New(&buf, LevelDebug, false))
	defer SetGlobalLogger(nil)

	Debugf("main", "value=%d", 7)
	Warn("main", "careful")

	assert.Contains(t, buf.String(), "[DEBUG] main: value=7")
	assert.Contains(t, buf.String(), "[WARN] main: careful")
}
