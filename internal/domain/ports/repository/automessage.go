package repository

import (
	"context"

	"telegram-campaign-bot/internal/domain/model"
)

type AutoMessageRepository interface {
	Save(ctx context.Context, tx Tx, m *model.AutoMessage) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.AutoMessage, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.AutoMessage, error)
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.AutoMessage, error)
	// WasSent reports whether the recipient already received this auto message.
	WasSent(ctx context.Context, tx Tx, recipientID, autoMessageID string) (bool, error)
	MarkSent(ctx context.Context, tx Tx, recipientID, autoMessageID string) error
}
