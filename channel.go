package delivery

import "context"

// Channel identifies a message transport.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSms      Channel = "sms"
	ChannelTelegram Channel = "telegram"
	ChannelWhatsapp Channel = "whatsapp"
	ChannelWebhook  Channel = "webhook"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSms, ChannelTelegram, ChannelWhatsapp, ChannelWebhook:
		return true
	}

	return false
}

// Sender transmits a single message over one channel. Implementations live in
// the provider packages; the dispatcher bounds every call with a timeout and
// treats any error, deadline included, as a transport failure.
type Sender interface {
	Send(ctx context.Context, recipient, content string) error
}

type SenderMap map[Channel]Sender
