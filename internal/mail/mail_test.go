package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetMessage(t *testing.T) {
	msg := string(resetMessage("ctf@example.com", "p@example.com", "http://x/reset-password?token=abc"))
	assert.Contains(t, msg, "From: ctf@example.com\n")
	assert.Contains(t, msg, "To: p@example.com\n")
	assert.Contains(t, msg, `href="http://x/reset-password?token=abc"`)
}

func TestNewSMTPMailerDefaultsFrom(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", "587", "bot@example.com", "pw", "")
	assert.Equal(t, "bot@example.com", m.from)
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := LogMailer{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	require.NoError(t, m.SendPasswordReset(context.Background(), "p@example.com", "http://link"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "http://link", rec["link"])
}
