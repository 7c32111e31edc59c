package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// RawEmailSender is the slice of the SES client the transport needs
type RawEmailSender interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// SESDialer sends through AWS SES. Attachments need SendRawEmail, so messages are
// MIME-encoded locally first.
type SESDialer struct {
	client RawEmailSender
	from   Sender
}

func NewSESDialer(client RawEmailSender, from Sender) *SESDialer {
	return &SESDialer{client: client, from: from}
}

// NewSESClient loads the default AWS credential chain for region
func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return ses.NewFromConfig(cfg), nil
}

// Dial is free: the SES client is stateless HTTP
func (d *SESDialer) Dial(_ context.Context) (Transport, error) {
	return &sesTransport{client: d.client, from: d.from}, nil
}

type sesTransport struct {
	client RawEmailSender
	from   Sender
}

func (t *sesTransport) Send(ctx context.Context, msg Message) error {
	raw, err := rawMessage(t.from, msg)
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}

	_, err = t.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(t.from.Address),
		Destinations: []string{msg.To},
		RawMessage:   &types.RawMessage{Data: raw},
	})
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

func (t *sesTransport) Close() error {
	return nil
}
