package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"BulletinDispatch/internal/ports"
)

// Config holds SMTP submission settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// TLS is "ssl" for implicit TLS (465) or "starttls" (default).
	TLS     string
	Timeout time.Duration
}

// SMTPMailer submits messages over an authenticated, encrypted SMTP session.
type SMTPMailer struct {
	cfg Config
}

var _ ports.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer validates cfg and returns a mailer.
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp mailer misconfigured: host and from are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Send dials the server, sends msg and closes the session. Any error,
// including a timeout, means the message was not accepted.
func (m *SMTPMailer) Send(ctx context.Context, msg ports.Message) error {
	out, err := m.build(msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("new smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTimeout(m.cfg.Timeout),
	}
	if strings.EqualFold(m.cfg.TLS, "ssl") {
		opts = append(opts, gomail.WithSSLPort(false))
	} else {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSMandatory))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

// build assembles a multipart message: plain text with an HTML alternative
// and exactly one attachment.
func (m *SMTPMailer) build(msg ports.Message) (*gomail.Msg, error) {
	if msg.Attachment.Name == "" || len(msg.Attachment.Data) == 0 {
		return nil, fmt.Errorf("message to %s has no attachment", msg.To)
	}

	out := gomail.NewMsg()
	if m.cfg.FromName != "" {
		if err := out.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
			return nil, fmt.Errorf("set from: %w", err)
		}
	} else if err := out.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("set to %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetBodyString(gomail.TypeTextPlain, msg.PlainBody)
	if msg.HTMLBody != "" {
		out.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	}

	contentType := msg.Attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	err := out.AttachReader(msg.Attachment.Name, bytes.NewReader(msg.Attachment.Data),
		gomail.WithFileContentType(gomail.ContentType(contentType)))
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", msg.Attachment.Name, err)
	}
	return out, nil
}
