package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Attachment is a file carried by a notification
type Attachment struct {
	Name        string
	Content     []byte
	ContentType string
}

// Message is one outbound notification
type Message struct {
	To          string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
}

// Transport delivers messages over an established connection. A Transport whose
// Send failed must be closed and not reused.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Dialer opens Transports. The dispatcher dials lazily and at most once per
// healthy stretch of a batch.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// Sender is the From identity on outbound mail
type Sender struct {
	Name    string
	Address string
}

// buildMsg renders msg as a MIME message. It backs the SMTP transport directly and
// supplies the raw bytes for the SES transport.
func buildMsg(from Sender, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(from.Name, from.Address); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	if msg.TextBody != "" {
		m.AddAlternativeString(mail.TypeTextPlain, msg.TextBody)
	}

	for _, att := range msg.Attachments {
		var opts []mail.FileOption
		if att.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(att.ContentType)))
		}
		if err := m.AttachReader(att.Name, bytes.NewReader(att.Content), opts...); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", att.Name, err)
		}
	}

	return m, nil
}

func rawMessage(from Sender, msg Message) ([]byte, error) {
	m, err := buildMsg(from, msg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}
