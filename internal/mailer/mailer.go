// Package mailer delivers the transactional emails of the auth flows.
package mailer

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strconv"

	"github.com/repohub/repohub-backend/internal/config"
	"github.com/repohub/repohub-backend/internal/logging"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends HTML mail through an SMTP relay. Delivery is synchronous.
type SMTPMailer struct {
	cfg  config.SMTPConfig
	send sendFunc
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.cfg.Host == "" || m.cfg.From == "" {
		return fmt.Errorf("missing SMTP configuration")
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	return m.send(addr, auth, m.cfg.From, []string{msg.To}, compose(m.cfg.From, msg))
}

func compose(from string, msg Message) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=\"utf-8\"\r\n"+
			"\r\n%s\r\n",
		from, msg.To, mime.QEncoding.Encode("utf-8", msg.Subject), msg.HTML,
	))
}

// LogMailer writes messages to the log instead of sending them. Used when
// SMTP is not configured.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info(ctx, "mail not sent: smtp disabled", "to", msg.To, "subject", msg.Subject, "body", msg.HTML)
	return nil
}

// New picks SMTP delivery when configured and the log fallback otherwise.
func New(cfg config.SMTPConfig, log logging.Logger) Mailer {
	if cfg.Enabled() {
		return NewSMTPMailer(cfg)
	}
	return NewLogMailer(log)
}
