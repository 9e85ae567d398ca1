// Package email delivers password reset codes.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"text/template"
	"time"
)

const (
	smtpTimeout = 30 * time.Second
)

var resetBody = template.Must(template.New("reset").Parse(`Hello!

Someone asked to reset the password of the anomidate account using this address.
Your reset code is:

    {{.Code}}

The code expires in {{.Minutes}} minutes.

If you didn't request this email, you can safely ignore it.

- anomidate
`))

type resetData struct {
	Code    string
	Minutes int
}

func renderResetBody(code string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	if err := resetBody.Execute(&buf, resetData{Code: code, Minutes: int(ttl.Minutes())}); err != nil {
		return "", fmt.Errorf("rendering reset email: %w", err)
	}
	return buf.String(), nil
}

type SMTPService struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPService(host string, port int, username, password, from string) *SMTPService {
	return &SMTPService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *SMTPService) SendPasswordResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	body, err := renderResetBody(code, ttl)
	if err != nil {
		return err
	}
	return s.send(ctx, to, "Your anomidate password reset code", body)
}

func (s *SMTPService) send(ctx context.Context, to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient address")
	}

	msg := s.buildMessage(to, subject, body)

	addr := net.JoinHostPort(s.host, fmt.Sprint(s.port))

	ctx, cancel := context.WithTimeout(ctx, smtpTimeout)
	defer cancel()

	dialer := net.Dialer{Timeout: smtpTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: s.host}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	} else if s.port != 25 && s.port != 1025 {
		return fmt.Errorf("STARTTLS not available on port %d (required for secure auth)", s.port)
	}

	if s.username != "" && s.password != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("SMTP MAIL command: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT command: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command: %w", err)
	}

	_, err = wc.Write([]byte(msg))
	if err != nil {
		wc.Close()
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	if err := client.Quit(); err != nil {
		slog.Warn("smtp QUIT command failed", "component", "email", "error", err)
	}

	return nil
}

func (s *SMTPService) buildMessage(to, subject, body string) string {
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s",
		s.from, to, subject, strings.ReplaceAll(body, "\n", "\r\n"))
}

// LogSender writes reset codes to the log. It stands in for SMTP in
// development setups without a mail server.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendPasswordResetCode(_ context.Context, to, code string, ttl time.Duration) error {
	s.logger.Info("password reset code (smtp not configured)",
		"component", "email", "to", to, "code", code, "expires_in", ttl.String())
	return nil
}
