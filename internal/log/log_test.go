package log_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sanjay900/joybridge/internal/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", log.LevelTrace},
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, log.ParseLevel(tt.in))
		})
	}
}

func TestNewLoggerSplitsErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := log.NewLogger(&stdout, &stderr, log.Config{Level: "debug"})

	logger.Debug("tick stats", "rate", 132)
	logger.Error("link lost")

	assert.Contains(t, stdout.String(), "tick stats")
	assert.NotContains(t, stdout.String(), "link lost")
	assert.Contains(t, stderr.String(), "link lost")
	assert.NotContains(t, stderr.String(), "tick stats")
}

func TestTraceLevelName(t *testing.T) {
	var stdout bytes.Buffer
	logger := log.NewLogger(&stdout, &bytes.Buffer{}, log.Config{Level: "trace", Format: "json"})
	logger.Log(t.Context(), log.LevelTrace, "packet")
	assert.Contains(t, stdout.String(), `"level":"TRACE"`)
}

func TestRawLogger(t *testing.T) {
	var buf bytes.Buffer
	raw := log.NewRaw(&buf)

	raw.Log(true, []byte{0xA2, 0x01})
	raw.Log(false, []byte{0xA1, 0x30, 0xFF})
	raw.Log(false, nil)

	out := buf.String()
	assert.Contains(t, out, "host->pad  2 bytes: a2 01")
	assert.Contains(t, out, "pad->host  3 bytes: a1 30 ff")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))

	// nil writer is a no-op
	log.NewRaw(nil).Log(true, []byte{0x01})
}
