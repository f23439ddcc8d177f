// File: internal/infra/adapters/telegram/alerter.go
package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain/ports/adapter"
	"ecocash-activation/internal/infra/metrics"
)

var _ adapter.OperatorAlerter = (*Alerter)(nil)

// sender is the slice of *tgbotapi.BotAPI the alerter needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Alerter fans an operator alert out to the configured Telegram chats.
type Alerter struct {
	bot     sender
	chatIDs []int64
	prefix  string
	log     *zerolog.Logger
}

// NewAlerter connects to the Bot API (one getMe call) and returns the alerter.
func NewAlerter(token string, chatIDs []int64, logger *zerolog.Logger) (*Alerter, error) {
	if token == "" || len(chatIDs) == 0 {
		return nil, errors.New("telegram alert token and chat ids are required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newAlerter(bot, chatIDs, logger), nil
}

func newAlerter(bot sender, chatIDs []int64, logger *zerolog.Logger) *Alerter {
	l := logger.With().Str("component", "TelegramAlerter").Logger()
	return &Alerter{bot: bot, chatIDs: chatIDs, prefix: "⚠️ ecocash-activation\n", log: &l}
}

// Alert returns the first send error but still tries every chat.
func (a *Alerter) Alert(ctx context.Context, text string) error {
	var first error
	for _, id := range a.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(id, a.prefix+text)
		msg.DisableWebPagePreview = true
		if _, err := a.bot.Send(msg); err != nil {
			metrics.IncNotify("telegram", "error")
			a.log.Warn().Err(err).Int64("chat_id", id).Msg("alert send failed")
			if first == nil {
				first = err
			}
			continue
		}
		metrics.IncNotify("telegram", "sent")
	}
	return first
}

var _ adapter.OperatorAlerter = (*NoopAlerter)(nil)

// NoopAlerter only logs; used when alerting is not configured.
type NoopAlerter struct {
	log *zerolog.Logger
}

func NewNoopAlerter(logger *zerolog.Logger) *NoopAlerter {
	return &NoopAlerter{log: logger}
}

func (n *NoopAlerter) Alert(ctx context.Context, text string) error {
	n.log.Warn().Str("alert", text).Msg("[noop-telegram] operator alert")
	return nil
}
