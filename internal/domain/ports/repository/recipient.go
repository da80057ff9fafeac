package repository

import (
	"context"
	"time"

	"telegram-campaign-bot/internal/domain/model"
)

// RecipientFilter narrows a broadcast audience. Zero value selects every
// non-blocked recipient.
type RecipientFilter struct {
	Language       string
	Source         string
	IncludeBlocked bool
}

type RecipientRepository interface {
	Save(ctx context.Context, tx Tx, r *model.Recipient) error
	FindByTelegramID(ctx context.Context, tx Tx, tgID int64) (*model.Recipient, error)
	List(ctx context.Context, tx Tx, filter RecipientFilter, offset, limit int) ([]*model.Recipient, error)
	SetBlocked(ctx context.Context, tx Tx, tgID int64, blocked bool) error
	Count(ctx context.Context, tx Tx) (int, error)
	CountBlocked(ctx context.Context, tx Tx) (int, error)
	CountByLanguage(ctx context.Context, tx Tx) (map[string]int, error)
	CountCreatedSince(ctx context.Context, tx Tx, since time.Time) (int, error)
}
