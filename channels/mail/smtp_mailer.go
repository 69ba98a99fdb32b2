package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/supportflow/engine"
)

var ErrRegistry = errx.NewRegistry("MAIL")

var (
	CodeMailNotConfigured = ErrRegistry.Register("MAIL_NOT_CONFIGURED", errx.TypeInternal, http.StatusServiceUnavailable, "Mail relay is not configured")
	CodeMailFailed        = ErrRegistry.Register("MAIL_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to send email")
)

func ErrMailNotConfigured() *errx.Error { return ErrRegistry.New(CodeMailNotConfigured) }
func ErrMailFailed() *errx.Error        { return ErrRegistry.New(CodeMailFailed) }

// SendFunc submits one message to the relay at addr
type SendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers send_email blocks through an SMTP relay
type SMTPMailer struct {
	addr     string
	host     string
	username string
	password string
	from     string
	send     SendFunc
	now      func() time.Time
}

var _ engine.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer for the relay at host:port
func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	m := &SMTPMailer{
		addr:     fmt.Sprintf("%s:%s", host, port),
		host:     host,
		username: username,
		password: password,
		from:     from,
		now:      time.Now,
	}
	m.send = m.deliver
	return m
}

// WithSendFunc replaces the transport, used by tests
func (m *SMTPMailer) WithSendFunc(fn SendFunc) *SMTPMailer {
	m.send = fn
	return m
}

// Send delivers a plain-text message. The whole relay conversation is bound
// to ctx.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.host == "" || m.from == "" {
		return ErrMailNotConfigured()
	}
	if err := ctx.Err(); err != nil {
		return errx.Wrap(err, "mail cancelled", errx.TypeInternal)
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	msg := m.compose(to, subject, body)
	if err := m.send(ctx, m.addr, auth, m.from, []string{to}, msg); err != nil {
		logx.Error("Failed to send email to %s: %v", to, err)
		return ErrMailFailed().WithDetail("to", to).WithCause(err)
	}

	logx.Info("Email sent to %s", to)
	return nil
}

// deliver is smtp.SendMail with a context-aware dial and a connection
// deadline taken from ctx
func (m *SMTPMailer) deliver(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return err
		}
	}

	// Unblock any pending read or write on cancellation
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if a != nil {
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (m *SMTPMailer) compose(to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
