package alerts

import (
	"context"
	"fmt"
	"net"
	"time"

	"missedcall_backend/internal/twilio"
	"missedcall_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// SMSChannel delivers alerts to the operator's phone via Twilio.
type SMSChannel struct {
	sender twilio.Sender
	to     string
	from   string
}

func NewSMSChannel(cfg config.AlertConfig, sender twilio.Sender) *SMSChannel {
	if !cfg.IsAlertSMSEnabled() || sender == nil {
		return nil
	}
	return &SMSChannel{
		sender: sender,
		to:     cfg.GetOperatorPhone(),
		from:   cfg.GetAlertFromNumber(),
	}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Deliver(ctx context.Context, payload Payload) error {
	body := fmt.Sprintf("[%s] %s\n%s", payload.Severity, payload.Title, payload.Message)
	_, err := c.sender.Send(ctx, c.to, c.from, body)
	return err
}

// EmailChannel delivers alerts to the operator's inbox over SMTP.
type EmailChannel struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	toEmail   string
}

func NewEmailChannel(cfg config.AlertConfig) *EmailChannel {
	if !cfg.IsAlertEmailEnabled() {
		return nil
	}
	return &EmailChannel{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromEmail: cfg.GetEmailFromAddress(),
		toEmail:   cfg.GetOperatorEmail(),
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Deliver(ctx context.Context, payload Payload) error {
	msg := gomail.NewMsg()
	if err := msg.From(c.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(c.toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(fmt.Sprintf("[%s] %s", payload.Severity, payload.Title))
	msg.SetBodyString(gomail.TypeTextPlain, payload.Message)

	client, err := gomail.NewClient(c.host,
		gomail.WithPort(c.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(c.username),
		gomail.WithPassword(c.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
