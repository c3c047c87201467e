// Package mail delivers the rendered meeting minutes over Amazon SES.
package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends HTML email through SESv2. From is fixed at construction;
// recipients vary per meeting.
type SESSender struct {
	api  sesAPI
	from string
	log  zerolog.Logger
}

func NewSESSender(awsCfg aws.Config, from string, log zerolog.Logger) *SESSender {
	return &SESSender{
		api:  sesv2.NewFromConfig(awsCfg),
		from: from,
		log:  log.With().Str("component", "ses").Logger(),
	}
}

// NewSESSenderWithAPI builds a sender around an explicit API, for tests.
func NewSESSenderWithAPI(api sesAPI, from string, log zerolog.Logger) *SESSender {
	return &SESSender{api: api, from: from, log: log}
}

// SendHTML sends one HTML email. Subject and body are UTF-8; SES handles the
// MIME encoding. bcc may be nil.
func (s *SESSender) SendHTML(ctx context.Context, to, bcc []string, subject, htmlBody string) error {
	if s.from == "" {
		return fmt.Errorf("ses sender address not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	charset := aws.String("UTF-8")
	out, err := s.api.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses:  to,
			BccAddresses: bcc,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: charset},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: charset},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}

	s.log.Info().
		Str("message_id", aws.ToString(out.MessageId)).
		Int("to", len(to)).
		Int("bcc", len(bcc)).
		Msg("email sent")
	return nil
}
