package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"form-consent/config"
)

// ConfirmationMail is the message asking a submitter to confirm a consent.
type ConfirmationMail struct {
	To          string
	FromAddress string
	FromName    string
	Subject     string
	ApproveURL  string
	DismissURL  string
}

type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, m ConfirmationMail) error
}

// SMTPMailer delivers confirmation mails through an SMTP relay. Without a
// configured relay it only logs the message.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (s *SMTPMailer) SendConfirmation(ctx context.Context, m ConfirmationMail) error {
	if !s.cfg.Configured() {
		s.logger.InfoContext(ctx, "mock confirmation mail",
			"to", m.To, "approve_url", m.ApproveURL, "dismiss_url", m.DismissURL)
		return nil
	}

	msg := buildConfirmationMessage(m, s.cfg)
	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(msg); err != nil {
		s.logger.ErrorContext(ctx, "confirmation mail failed", "to", m.To, "err", err)
		return fmt.Errorf("send confirmation mail: %w", err)
	}

	s.logger.InfoContext(ctx, "confirmation mail sent", "to", m.To)
	return nil
}

func buildConfirmationMessage(m ConfirmationMail, cfg config.SMTPConfig) *gomail.Message {
	fromAddr, fromName := m.FromAddress, m.FromName
	if fromAddr == "" {
		fromAddr = cfg.From
	}
	if fromName == "" {
		fromName = cfg.FromName
	}
	subject := strings.TrimSpace(m.Subject)
	if subject == "" {
		subject = "Please confirm your submission"
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", fromAddr, fromName)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", confirmationPlainBody(m))
	msg.AddAlternative("text/html", confirmationHTMLBody(m))
	return msg
}

func confirmationPlainBody(m ConfirmationMail) string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	b.WriteString("please confirm your form submission by following this link:\n")
	b.WriteString(m.ApproveURL + "\n\n")
	if m.DismissURL != "" {
		b.WriteString("If you did not submit the form, you can withdraw it here:\n")
		b.WriteString(m.DismissURL + "\n")
	}
	return b.String()
}

func confirmationHTMLBody(m ConfirmationMail) string {
	dismiss := ""
	if m.DismissURL != "" {
		dismiss = fmt.Sprintf(`<p>If you did not submit the form, you can <a href="%s">withdraw it</a>.</p>`,
			html.EscapeString(m.DismissURL))
	}
	return fmt.Sprintf(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Confirm your submission</title></head>
<body style="font-family:Arial, Helvetica, sans-serif; color:#222;">
  <p>Hello,</p>
  <p>please confirm your form submission.</p>
  <p><a href="%s" style="display:inline-block; padding:12px 20px; background:#0b74ff; color:#fff; text-decoration:none; border-radius:6px;">Confirm</a></p>
  %s
</body>
</html>`, html.EscapeString(m.ApproveURL), dismiss)
}
