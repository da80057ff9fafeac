package repository

import (
	"context"

	"telegram-campaign-bot/internal/domain/model"
)

type CampaignRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Campaign) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Campaign, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Campaign, error)
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.Campaign, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
