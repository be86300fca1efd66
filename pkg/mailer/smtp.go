package mailer

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Mailer sends HTML e-mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host        string
	Port        int
	User        string
	Pass        string
	FromAddress string
	FromName    string
}

// SMTP delivers mail through an SMTP relay with PLAIN auth.
type SMTP struct {
	cfg    SMTPConfig
	logger *zap.Logger
}

// NewSMTP creates an SMTP mailer.
func NewSMTP(cfg SMTPConfig, logger *zap.Logger) *SMTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTP{cfg: cfg, logger: logger}
}

// Send delivers one message. net/smtp has no context support, so ctx is only
// checked before dialing.
func (s *SMTP) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	msg := BuildMessage(s.cfg.FromName, s.cfg.FromAddress, to, subject, htmlBody, time.Now())
	if err := smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// BuildMessage renders an RFC 5322 message with an HTML body.
func BuildMessage(fromName, fromAddr, to, subject, htmlBody string, date time.Time) []byte {
	from := fromAddr
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", fromName), fromAddr)
	}
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
