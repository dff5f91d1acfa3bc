package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mailgun/mailgun-go/v4"
	"gopkg.in/gomail.v2"
)

// OutboundEmail is the flat message payload handed to the send capability
type OutboundEmail struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	Body    string
}

// Mailer is the minimal outbound contract the sequence engine depends on.
// Send returns the provider's message id on success.
type Mailer interface {
	Send(email OutboundEmail) (string, error)
}

// MailgunMailer sends through the Mailgun HTTP API
type MailgunMailer struct {
	mg mailgun.Mailgun
}

func NewMailgunMailer(domain, apiKey string) *MailgunMailer {
	return &MailgunMailer{mg: mailgun.NewMailgun(domain, apiKey)}
}

func (m *MailgunMailer) Send(email OutboundEmail) (string, error) {
	message := m.mg.NewMessage(email.From, email.Subject, email.Body, email.To)
	if email.ReplyTo != "" {
		message.SetReplyTo(email.ReplyTo)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return "", fmt.Errorf("mailgun send failed: %w", err)
	}
	return id, nil
}

// SMTPMailer sends through a plain SMTP relay. SMTP hands back no message
// id, so a generated one is recorded instead; provider webhooks will not
// correlate to these sends.
type SMTPMailer struct {
	dialer *gomail.Dialer
}

func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	return &SMTPMailer{dialer: gomail.NewDialer(host, port, username, password)}
}

func (m *SMTPMailer) Send(email OutboundEmail) (string, error) {
	msg := gomail.NewMessage()
	msg.SetHeader("From", email.From)
	msg.SetHeader("To", email.To)
	if email.ReplyTo != "" {
		msg.SetHeader("Reply-To", email.ReplyTo)
	}
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/plain", email.Body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("error sending email: %w", err)
	}
	return uuid.New().String(), nil
}
