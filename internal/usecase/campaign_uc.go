package usecase

import (
	"context"
	"time"

	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ CampaignUseCase = (*campaignUC)(nil)

type CampaignUseCase interface {
	Create(ctx context.Context, code, title, description string, messages map[string]string) (*model.Campaign, error)
	Update(ctx context.Context, c *model.Campaign) error
	Get(ctx context.Context, id string) (*model.Campaign, error)
	List(ctx context.Context, offset, limit int) ([]*model.Campaign, error)
	Delete(ctx context.Context, id string) error
	// ActiveByCode resolves a deep-link code to a campaign only while its
	// window is open.
	ActiveByCode(ctx context.Context, code string) (*model.Campaign, error)
}

type campaignUC struct {
	campaigns repository.CampaignRepository
	log       *zerolog.Logger
}

func NewCampaignUseCase(campaigns repository.CampaignRepository, logger *zerolog.Logger) *campaignUC {
	return &campaignUC{campaigns: campaigns, log: logger}
}

func (u *campaignUC) Create(ctx context.Context, code, title, description string, messages map[string]string) (*model.Campaign, error) {
	c, err := model.NewCampaign("", code, title, messages)
	if err != nil {
		return nil, err
	}
	c.Description = description
	if err := u.campaigns.Save(ctx, repository.NoTX, c); err != nil {
		return nil, err
	}
	u.log.Info().Str("campaign_id", c.ID).Str("code", code).Msg("campaign created")
	return c, nil
}

func (u *campaignUC) Update(ctx context.Context, c *model.Campaign) error {
	return u.campaigns.Save(ctx, repository.NoTX, c)
}

func (u *campaignUC) Get(ctx context.Context, id string) (*model.Campaign, error) {
	return u.campaigns.FindByID(ctx, repository.NoTX, id)
}

func (u *campaignUC) List(ctx context.Context, offset, limit int) ([]*model.Campaign, error) {
	return u.campaigns.List(ctx, repository.NoTX, offset, limit)
}

func (u *campaignUC) Delete(ctx context.Context, id string) error {
	return u.campaigns.Delete(ctx, repository.NoTX, id)
}

func (u *campaignUC) ActiveByCode(ctx context.Context, code string) (*model.Campaign, error) {
	c, err := u.campaigns.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}
	if !c.CurrentlyActive(time.Now()) {
		return nil, nil
	}
	return c, nil
}
