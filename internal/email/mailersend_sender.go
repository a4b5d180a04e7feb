package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

// MailerSendSender envia correos usando la API HTTP de MailerSend.
type MailerSendSender struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	timeout time.Duration
}

func NewMailerSendSender(apiKey, from, fromName string) (*MailerSendSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("mailersend api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("mailersend from is required")
	}
	return &MailerSendSender{
		client:  mailersend.NewMailersend(apiKey),
		from:    mailersend.From{Name: fromName, Email: from},
		timeout: 10 * time.Second,
	}, nil
}

func (s *MailerSendSender) Send(ctx context.Context, m Message) error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("to email is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := s.client.Email.NewMessage()
	msg.SetFrom(s.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: m.To}})
	msg.SetSubject(m.Subject)
	if strings.TrimSpace(m.Text) != "" {
		msg.SetText(m.Text)
	}
	if strings.TrimSpace(m.HTML) != "" {
		msg.SetHTML(m.HTML)
	}

	_, err := s.client.Email.Send(ctx, msg)
	return err
}
