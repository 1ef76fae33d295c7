// Package mail sends password-reset links.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	if from == "" {
		from = username
	}
	return &SMTPMailer{host: host, port: port, username: username, password: password, from: from}
}

func (s *SMTPMailer) SendPasswordReset(_ context.Context, to, link string) error {
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	msg := resetMessage(s.from, to, link)
	if err := smtp.SendMail(s.host+":"+s.port, auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("sending reset mail: %w", err)
	}
	return nil
}

func resetMessage(from, to, link string) []byte {
	body := strings.TrimSpace(`
From: %s
To: %s
MIME-version: 1.0
Content-Type: text/html; charset="UTF-8"
Subject: Reset your CTF password

<!DOCTYPE html>
<html>
<body style="background-color: #0b0f14; margin: 0; padding: 20px; font-family: monospace; color: #d1d5db;">
    <h1 style="color: #22c55e;">Reset your password</h1>
    <p>Use the link below to choose a new password. It expires in 1 hour.</p>
    <p><a href="%s" style="color: #22c55e;">Reset password</a></p>
    <p>If you did not ask for this, ignore this email.</p>
</body>
</html>
`)
	return []byte(fmt.Sprintf(body, from, to, link))
}

// LogMailer logs the link instead of sending it. Used when SMTP is not configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.Logger.Info("password reset requested", "to", to, "link", link)
	return nil
}
