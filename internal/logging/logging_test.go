package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("hello", "team", "alpha")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "alpha", rec["team"])
}

func TestPrettyHandler(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := New(&buf, "pretty", slog.LevelWarn)

	logger.Info("skipped")
	assert.Empty(t, buf.String())

	logger.With("req", "r1").WithGroup("db").Warn("slow query", "ms", 120)
	out := buf.String()
	assert.Contains(t, out, "WARN:")
	assert.Contains(t, out, "slow query")
	assert.Contains(t, out, "req=r1 ")
	assert.NotContains(t, out, "db.req")
	assert.Contains(t, out, "db.ms=120")
}
