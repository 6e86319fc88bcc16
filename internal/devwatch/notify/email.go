package notify

import (
	"context"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"github.com/dimasma0305/devwatch/internal/devwatch/config"
)

// DefaultSMTPPort applies when the config leaves the port unset
const DefaultSMTPPort = 587

// Email sends notifications over SMTP
type Email struct {
	cfg  config.EmailConfig
	send func(m ...*gomail.Message) error
}

// NewEmail creates an SMTP sender
func NewEmail(cfg config.EmailConfig) *Email {
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Email{cfg: cfg, send: d.DialAndSend}
}

// Name implements Sender
func (e *Email) Name() string { return "email" }

// Send implements Sender. gomail has no context support, so ctx is only
// checked before dialing.
func (e *Email) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.send(e.buildMessage(n)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *Email) buildMessage(n Notification) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", e.cfg.From)
	m.SetHeader("To", e.cfg.To...)
	subject := fmt.Sprintf("[devwatch] %s", n.Title)
	if n.Project != "" {
		subject = fmt.Sprintf("[devwatch] %s: %s", n.Project, n.Title)
	}
	m.SetHeader("Subject", subject)
	m.SetDateHeader("Date", n.Time)

	m.SetBody("text/plain", n.Body)
	m.AddAlternative("text/html", fmt.Sprintf(
		"<p><strong>%s</strong></p><p>%s</p><p><small>%s</small></p>",
		html.EscapeString(n.Title), html.EscapeString(n.Body), n.Time.Format("2006-01-02 15:04:05"),
	))
	return m
}
