package mailer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repohub/repohub-backend/internal/config"
	"github.com/repohub/repohub-backend/internal/logging"
)

func TestSMTPMailer_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m := NewSMTPMailer(config.SMTPConfig{Host: "smtp.test", Port: 2525, User: "u", Password: "p", From: "no-reply@test"})
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := m.Send(context.Background(), VerificationCode("RepoHub", "ana@x.io", "123456", 5*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, "smtp.test:2525", gotAddr)
	assert.Equal(t, "no-reply@test", gotFrom)
	assert.Equal(t, []string{"ana@x.io"}, gotTo)
	assert.Contains(t, string(gotMsg), "To: ana@x.io\r\n")
	assert.Contains(t, string(gotMsg), "<b>123456</b>")
	assert.Contains(t, string(gotMsg), "Vence en 5 minutos")
}

func TestSMTPMailer_PropagatesFailures(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "smtp.test", Port: 25, From: "a@b"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay down") }
	assert.EqualError(t, m.Send(context.Background(), Message{To: "x@y"}), "relay down")

	assert.Error(t, NewSMTPMailer(config.SMTPConfig{}).Send(context.Background(), Message{To: "x@y"}))
}

func TestNew_FallsBackToLog(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	m := New(config.SMTPConfig{}, log)
	require.IsType(t, &LogMailer{}, m)
	require.NoError(t, m.Send(context.Background(), PasswordReset("RepoHub", "ana@x.io", "http://app/reset-password?token=abc", 20*time.Minute)))
	assert.Contains(t, buf.String(), "ana@x.io")

	assert.IsType(t, &SMTPMailer{}, New(config.SMTPConfig{Host: "smtp"}, log))
}
