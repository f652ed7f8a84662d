package mailgun

import (
	"context"

	"github.com/mailgun/mailgun-go/v3"
	"github.com/pkg/errors"

	delivery "github.com/interactive-solutions/go-delivery"
)

type MailgunOption func(t *mailgunSender)

func SetSubject(subject string) MailgunOption {
	return func(t *mailgunSender) {
		t.subject = subject
	}
}

func SetReplyTo(replyTo string) MailgunOption {
	return func(t *mailgunSender) {
		t.replyTo = replyTo
	}
}

type mailgunSender struct {
	mg mailgun.Mailgun

	from    string
	subject string
	replyTo string
}

func NewMailgunSender(mailgunClient mailgun.Mailgun, from string, options ...MailgunOption) delivery.Sender {
	sender := &mailgunSender{
		mg:      mailgunClient,
		from:    from,
		subject: "Delivery notification",
	}

	for _, option := range options {
		option(sender)
	}

	return sender
}

func (t *mailgunSender) Send(ctx context.Context, recipient, content string) error {
	msg := t.mg.NewMessage(t.from, t.subject, content, recipient)

	if t.replyTo != "" {
		msg.SetReplyTo(t.replyTo)
	}

	_, _, err := t.mg.Send(ctx, msg)

	return errors.Wrap(err, "Failed to send message through mailgun")
}
