package relay

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Incoming is one inbound chat message.
type Incoming struct {
	ChatID   int64
	Username string
	Text     string
}

// Messenger sends text to a chat.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TelegramMessenger talks to the Telegram Bot API. Outbound messages go
// through a token bucket so bursts of publish pushes stay under the
// platform's global send limit.
type TelegramMessenger struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewTelegramMessenger authorizes the bot token. perSecond caps outbound
// messages across all chats.
func NewTelegramMessenger(token string, perSecond float64, log zerolog.Logger) (*TelegramMessenger, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}

	log.Info().Str("bot", bot.Self.UserName).Msg("Telegram bot authorized")
	return &TelegramMessenger{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		log:     log.With().Str("component", "telegram").Logger(),
	}, nil
}

// Send delivers text to chatID, waiting for a send token first.
func (m *TelegramMessenger) Send(ctx context.Context, chatID int64, text string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := m.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Updates long-polls Telegram and emits text messages until ctx ends.
// The returned channel is closed afterwards.
func (m *TelegramMessenger) Updates(ctx context.Context) <-chan Incoming {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := m.bot.GetUpdatesChan(cfg)

	out := make(chan Incoming)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				m.bot.StopReceivingUpdates()
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				if u.Message == nil || u.Message.Chat == nil {
					continue
				}
				in := Incoming{ChatID: u.Message.Chat.ID, Text: u.Message.Text}
				if u.Message.From != nil {
					in.Username = u.Message.From.UserName
				}
				select {
				case out <- in:
				case <-ctx.Done():
					m.bot.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}
