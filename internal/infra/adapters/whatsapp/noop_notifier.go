package whatsapp

import (
	"context"

	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs instead of sending; used when provider credentials are absent.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	l := logger.With().Str("component", "NoopNotifier").Logger()
	return &NoopNotifier{log: &l}
}

func (n *NoopNotifier) Send(ctx context.Context, to, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info().Str("to", to).Int("len", len(text)).Msg("[noop-whatsapp] message not sent")
	return nil
}
