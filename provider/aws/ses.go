package provider

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
)

type SesOption func(t *sesSender)

func SetSubject(subject string) SesOption {
	return func(t *sesSender) {
		t.subject = subject
	}
}

type sesSender struct {
	ses *ses.SES

	from    string
	subject string
	charset string
}

// NewSesSender returns an email sender backed by AWS SES. The message content
// is sent as the text body under a fixed subject line.
func NewSesSender(sess *session.Session, from string, options ...SesOption) *sesSender {
	sender := &sesSender{
		ses:     ses.New(sess),
		from:    from,
		subject: "Delivery notification",
		charset: "UTF-8",
	}

	for _, option := range options {
		option(sender)
	}

	return sender
}

func (t *sesSender) Send(ctx context.Context, recipient, content string) error {
	input := &ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: []*string{
				aws.String(recipient),
			},
		},
		Message: &ses.Message{
			Body: &ses.Body{
				Text: &ses.Content{
					Charset: aws.String(t.charset),
					Data:    aws.String(content),
				},
			},
			Subject: &ses.Content{
				Charset: aws.String(t.charset),
				Data:    aws.String(t.subject),
			},
		},

		Source: aws.String(t.from),
	}

	_, err := t.ses.SendEmailWithContext(ctx, input)

	return err
}
