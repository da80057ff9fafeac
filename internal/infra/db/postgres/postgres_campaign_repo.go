package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
)

var _ repository.CampaignRepository = (*CampaignRepo)(nil)

// CampaignRepo stores per-language bodies and buttons as JSONB columns.
type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

const campaignCols = `id, code, title, description, messages, media_kind, media_file_id, buttons, active_from, active_to, active, language, created_at`

func (r *CampaignRepo) Save(ctx context.Context, tx repository.Tx, c *model.Campaign) error {
	const q = `
INSERT INTO campaigns (
  id, code, title, description, messages, media_kind, media_file_id, buttons,
  active_from, active_to, active, language, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (id) DO UPDATE SET
  code=$2, title=$3, description=$4, messages=$5, media_kind=$6, media_file_id=$7,
  buttons=$8, active_from=$9, active_to=$10, active=$11, language=$12;
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	messages, err := json.Marshal(c.Messages)
	if err != nil {
		return err
	}
	buttons, err := json.Marshal(c.Buttons)
	if err != nil {
		return err
	}
	var mediaKind, mediaFileID string
	if c.Media != nil {
		mediaKind = string(c.Media.Kind)
		mediaFileID = c.Media.FileID
	}
	_, err = ex.Exec(ctx, q, c.ID, c.Code, c.Title, c.Description, messages, mediaKind, mediaFileID,
		buttons, c.ActiveFrom, c.ActiveTo, c.Active, c.Language, c.CreatedAt)
	return err
}

func scanCampaign(row pgx.Row) (*model.Campaign, error) {
	var c model.Campaign
	var messages, buttons []byte
	var mediaKind, mediaFileID string
	err := row.Scan(&c.ID, &c.Code, &c.Title, &c.Description, &messages, &mediaKind, &mediaFileID,
		&buttons, &c.ActiveFrom, &c.ActiveTo, &c.Active, &c.Language, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(messages, &c.Messages); err != nil {
		return nil, err
	}
	if len(buttons) > 0 {
		if err := json.Unmarshal(buttons, &c.Buttons); err != nil {
			return nil, err
		}
	}
	if mediaKind != "" {
		c.Media = &model.MediaRef{Kind: model.MediaKind(mediaKind), FileID: mediaFileID}
	}
	return &c, nil
}

func (r *CampaignRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Campaign, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanCampaign(ex.QueryRow(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE id=$1;`, id))
}

func (r *CampaignRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Campaign, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanCampaign(ex.QueryRow(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE code=$1;`, code))
}

func (r *CampaignRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Campaign, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := ex.Query(ctx, `SELECT `+campaignCols+` FROM campaigns ORDER BY created_at DESC OFFSET $1 LIMIT $2;`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, `DELETE FROM campaigns WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
