package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunConfig holds Mailgun API settings
type MailgunConfig struct {
	Domain  string
	APIKey  string
	APIBase string
	Timeout time.Duration
	From    Sender
}

// MailgunDialer sends through the Mailgun HTTP API
type MailgunDialer struct {
	cfg MailgunConfig
}

func NewMailgunDialer(cfg MailgunConfig) *MailgunDialer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MailgunDialer{cfg: cfg}
}

func (d *MailgunDialer) Dial(_ context.Context) (Transport, error) {
	mg := mailgun.NewMailgun(d.cfg.Domain, d.cfg.APIKey)
	if d.cfg.APIBase != "" {
		mg.SetAPIBase(d.cfg.APIBase)
	}
	return &mailgunTransport{mg: mg, cfg: d.cfg}, nil
}

type mailgunTransport struct {
	mg  mailgun.Mailgun
	cfg MailgunConfig
}

func (t *mailgunTransport) Send(ctx context.Context, msg Message) error {
	from := t.cfg.From.Address
	if t.cfg.From.Name != "" {
		from = fmt.Sprintf("%s <%s>", t.cfg.From.Name, t.cfg.From.Address)
	}

	message := mailgun.NewMessage(from, msg.Subject, msg.TextBody, msg.To)
	message.SetHtml(msg.HTMLBody)
	for _, att := range msg.Attachments {
		message.AddBufferAttachment(att.Name, att.Content)
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	if _, _, err := t.mg.Send(ctx, message); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

func (t *mailgunTransport) Close() error {
	return nil
}
