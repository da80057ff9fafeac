package adapter

import (
	"context"

	"telegram-campaign-bot/internal/domain/model"
)

// Messenger is the external send primitive. Implementations classify
// transport failures into the domain taxonomy (RateLimitedError,
// TemporaryError, PermanentError) so the dispatcher can pick a retry policy.
type Messenger interface {
	Send(ctx context.Context, telegramID int64, p model.Payload) error
}
