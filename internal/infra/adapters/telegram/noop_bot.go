package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/adapter"
)

var _ adapter.Messenger = (*NoopMessenger)(nil)

// NoopMessenger logs instead of hitting Telegram. Useful for local runs and
// load-testing the dispatcher without burning a bot token.
type NoopMessenger struct {
	Delay time.Duration
	log   *zerolog.Logger
}

func NewNoopMessenger(logger *zerolog.Logger) *NoopMessenger {
	return &NoopMessenger{Delay: 50 * time.Millisecond, log: logger}
}

func (m *NoopMessenger) Send(ctx context.Context, tgID int64, p model.Payload) error {
	select {
	case <-time.After(m.Delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	m.log.Info().Int64("tg_id", tgID).Str("text", p.Text).Msg("noop send")
	return nil
}
