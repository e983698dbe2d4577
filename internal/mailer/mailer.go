// Package mailer delivers one-time sign-up codes.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// CodeMessage builds the email carrying a sign-up code.
func CodeMessage(to, code string) Message {
	return Message{
		To:      to,
		Subject: "Your verification code",
		Text: fmt.Sprintf("Your verification code is %s.\n\n"+
			"Enter it to activate your vault. The code expires in 10 minutes.", code),
	}
}

// SESAPI is the part of the SES client the mailer uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SES sends mail through Amazon SES.
type SES struct {
	Client SESAPI
	From   string
}

// NewSES loads the default AWS configuration for region.
func NewSES(ctx context.Context, region, from string) (*SES, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &SES{Client: ses.NewFromConfig(cfg), From: from}, nil
}

func (s *SES) Send(ctx context.Context, m Message) error {
	_, err := s.Client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{m.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(m.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(m.Text)},
			},
		},
		Source: aws.String(s.From),
	})
	if err != nil {
		return fmt.Errorf("sending email to %s: %w", m.To, err)
	}
	return nil
}

// Log writes messages to the log instead of sending them. Meant for local
// development, where no mail service is configured.
type Log struct{}

func (Log) Send(_ context.Context, m Message) error {
	slog.Info("email not sent, no mail service configured", "to", m.To, "subject", m.Subject, "body", m.Text)
	return nil
}
