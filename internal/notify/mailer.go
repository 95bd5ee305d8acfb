package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/dtroode/townsquare-auth/internal/logger"
	"github.com/dtroode/townsquare-auth/internal/model"
)

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg model.Message) error
}

// SMTPConfig describes an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends messages through an SMTP relay.
type SMTPMailer struct {
	addr string
	host string
	from string
	auth smtp.Auth
	send sendFunc
}

// NewSMTPMailer creates an SMTPMailer. PLAIN auth is used when a username
// is configured.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr: net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		host: cfg.Host,
		from: cfg.From,
		auth: auth,
		send: smtp.SendMail,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return fmt.Errorf("%w: header contains line break", model.ErrValidation)
	}
	if err := m.send(m.addr, m.auth, m.from, []string{msg.To}, m.render(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) render(msg model.Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SMTP relay is configured.
type LogMailer struct {
	logger *logger.Logger
}

func NewLogMailer(logger *logger.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg model.Message) error {
	m.logger.Info("Mailer: message not sent, no SMTP relay configured",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body)
	return nil
}
