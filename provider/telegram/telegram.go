package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	delivery "github.com/interactive-solutions/go-delivery"
)

type telegramSender struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramSender returns a chat sender that delivers through the Telegram
// bot API. The recipient is the numeric chat id.
func NewTelegramSender(bot *tgbotapi.BotAPI) delivery.Sender {
	return &telegramSender{
		bot: bot,
	}
}

func (t *telegramSender) Send(ctx context.Context, recipient, content string) error {
	chatId, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "Invalid telegram chat id %q", recipient)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(chatId, content)); err != nil {
		return errors.Wrap(err, "Failed to send message through telegram")
	}

	return nil
}
