package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hray3182/DeskPal/internal/format"
)

// MessageSender is the part of tgbotapi.BotAPI the push channel needs.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramPush sends reminders to a single owner chat. Sends are rate limited
// so a burst of due reminders stays under Telegram's per-chat limit.
type TelegramPush struct {
	api     MessageSender
	chatID  int64
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewTelegramPush(api MessageSender, chatID int64, log zerolog.Logger) *TelegramPush {
	return &TelegramPush{
		api:     api,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		log:     log,
	}
}

func (t *TelegramPush) Send(ctx context.Context, title, body string) bool {
	if err := t.limiter.Wait(ctx); err != nil {
		t.log.Warn().Err(err).Msg("Telegram push dropped while waiting for rate limiter")
		return false
	}

	parsed := format.ParseMarkdown("⏰ **" + title + "**\n\n" + body)
	msg := tgbotapi.NewMessage(t.chatID, parsed.Text)
	msg.Entities = parsed.Entities

	if _, err := t.api.Send(msg); err != nil {
		t.log.Warn().Err(err).Int64("chat_id", t.chatID).Msg("Failed to send Telegram push")
		return false
	}
	return true
}
