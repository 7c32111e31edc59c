package services

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

const (
	SMTPSecurityTLS  = "tls"
	SMTPSecuritySSL  = "ssl"
	SMTPSecurityNone = "none"
)

// SMTPConfig holds relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Security string // tls (STARTTLS), ssl (implicit TLS) or none
	Timeout  time.Duration
	From     Sender
}

// SMTPDialer opens one keep-alive SMTP session per Dial
type SMTPDialer struct {
	cfg SMTPConfig
}

func NewSMTPDialer(cfg SMTPConfig) *SMTPDialer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPDialer{cfg: cfg}
}

func (d *SMTPDialer) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(d.cfg.Port),
		mail.WithTimeout(d.cfg.Timeout),
	}

	switch d.cfg.Security {
	case SMTPSecuritySSL:
		opts = append(opts, mail.WithSSL())
	case SMTPSecurityNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	if d.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(d.cfg.Username),
			mail.WithPassword(d.cfg.Password),
		)
	}
	return opts
}

func (d *SMTPDialer) Dial(ctx context.Context) (Transport, error) {
	if d.cfg.Host == "" {
		return nil, &TransportError{Op: "dial", Err: fmt.Errorf("SMTP host missing")}
	}

	client, err := mail.NewClient(d.cfg.Host, d.options()...)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	if err := client.DialWithContext(ctx); err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	return &smtpTransport{client: client, from: d.cfg.From}, nil
}

type smtpTransport struct {
	client *mail.Client
	from   Sender
}

func (t *smtpTransport) Send(_ context.Context, msg Message) error {
	m, err := buildMsg(t.from, msg)
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	if err := t.client.Send(m); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

func (t *smtpTransport) Close() error {
	return t.client.Close()
}
