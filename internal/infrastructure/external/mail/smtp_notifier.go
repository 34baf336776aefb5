package mail

import (
	"context"
	"fmt"
	"mime"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/infrastructure/external/notify"
	"go.uber.org/zap"
)

// Config holds SMTP relay settings
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	TLS      bool
}

// IsConfigured reports whether enough settings are present to send mail
func (c Config) IsConfigured() bool {
	return c.Host != "" && c.Port != "" && c.From != ""
}

// SMTPNotifier delivers notifications as plain-text email
type SMTPNotifier struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewSMTPNotifier creates a new SMTP notifier
func NewSMTPNotifier(cfg Config, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Name implements port.Notifier
func (s *SMTPNotifier) Name() string {
	return "smtp"
}

// Notify implements port.Notifier
func (s *SMTPNotifier) Notify(ctx context.Context, n port.Notification) error {
	if !s.cfg.IsConfigured() {
		return fmt.Errorf("smtp notifier is not configured")
	}

	to := make([]string, 0, 1+len(n.CC))
	if n.Recipient.Email != "" {
		to = append(to, n.Recipient.Email)
	}
	for _, cc := range n.CC {
		if cc.Email != "" {
			to = append(to, cc.Email)
		}
	}
	if len(to) == 0 {
		s.logger.Warn("Notification has no email recipients",
			zap.String("subject", n.Subject),
			zap.String("reference_code", n.Trip.ReferenceCode))
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var auth sasl.Client
	if s.cfg.Username != "" {
		auth = sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	}

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	body := strings.NewReader(s.buildMessage(n))

	var err error
	if s.cfg.TLS {
		err = smtp.SendMailTLS(addr, auth, s.cfg.From, to, body)
	} else {
		err = smtp.SendMail(addr, auth, s.cfg.From, to, body)
	}
	if err != nil {
		s.logger.Error("Failed to send email",
			zap.Strings("to", to),
			zap.String("subject", n.Subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("Email sent",
		zap.Strings("to", to),
		zap.String("subject", n.Subject))
	return nil
}

// buildMessage renders an RFC 5322 message with CRLF line endings
func (s *SMTPNotifier) buildMessage(n port.Notification) string {
	var b strings.Builder

	writeHeader := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	writeHeader("From", s.cfg.From)
	if n.Recipient.Email != "" {
		writeHeader("To", formatAddress(n.Recipient))
	}
	if len(n.CC) > 0 {
		cc := make([]string, 0, len(n.CC))
		for _, r := range n.CC {
			if r.Email != "" {
				cc = append(cc, formatAddress(r))
			}
		}
		if len(cc) > 0 {
			writeHeader("Cc", strings.Join(cc, ", "))
		}
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", n.Subject))
	writeHeader("Date", s.now().Format(time.RFC1123Z))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `text/plain; charset="UTF-8"`)
	b.WriteString("\r\n")

	text := notify.Render(n)
	b.WriteString(strings.ReplaceAll(text, "\n", "\r\n"))
	b.WriteString("\r\n")

	return b.String()
}

func formatAddress(r port.Recipient) string {
	if r.Name == "" {
		return r.Email
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", r.Name), r.Email)
}

var _ port.Notifier = (*SMTPNotifier)(nil)
