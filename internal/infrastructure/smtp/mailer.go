package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/go-docshare/internal/config"
)

// defaultSendTimeout bounds a send whose context carries no deadline.
const defaultSendTimeout = 10 * time.Second

// Mailer sends emails.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

// SendEmail runs the whole SMTP exchange under one connection deadline taken
// from ctx. Cancelling ctx also closes the connection.
func (m *mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultSendTimeout)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()

	addr := net.JoinHostPort(m.host, m.port)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("smtp deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return m.wrap(ctx, "greeting", err)
	}
	defer c.Close()

	if err := m.deliver(c, to, subject, body); err != nil {
		return m.wrap(ctx, "send", err)
	}
	return c.Quit()
}

func (m *mailer) deliver(c *smtp.Client, to, subject, body string) error {
	if err := c.Hello("localhost"); err != nil {
		return err
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if m.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	return w.Close()
}

// wrap prefers the context error so callers see a deadline rather than an
// i/o timeout from the closed connection.
func (m *mailer) wrap(ctx context.Context, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("smtp %s: %w", stage, ctxErr)
	}
	return fmt.Errorf("smtp %s: %w", stage, err)
}

// OTPNotifier mails verification codes.
type OTPNotifier struct {
	mailer Mailer
	ttl    time.Duration
}

func NewOTPNotifier(m Mailer, ttl time.Duration) *OTPNotifier {
	return &OTPNotifier{mailer: m, ttl: ttl}
}

func (n *OTPNotifier) SendOTP(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.mailer.SendEmail(ctx, email, "Your verification code", otpBody(code, n.ttl))
}

func otpBody(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your verification code is %s.\r\nIt expires in %d minutes. If you did not request it, ignore this email.", code, int(ttl.Minutes()))
}
