package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
)

var _ repository.AutoMessageRepository = (*AutoMessageRepo)(nil)

type AutoMessageRepo struct {
	pool *pgxpool.Pool
}

func NewAutoMessageRepo(pool *pgxpool.Pool) *AutoMessageRepo {
	return &AutoMessageRepo{pool: pool}
}

const autoMessageCols = `id, name, delay_minutes, messages, media_kind, media_file_id, buttons, target_language, target_source, active, created_at`

func (r *AutoMessageRepo) Save(ctx context.Context, tx repository.Tx, m *model.AutoMessage) error {
	const q = `
INSERT INTO auto_messages (
  id, name, delay_minutes, messages, media_kind, media_file_id, buttons,
  target_language, target_source, active, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  name=$2, delay_minutes=$3, messages=$4, media_kind=$5, media_file_id=$6,
  buttons=$7, target_language=$8, target_source=$9, active=$10;
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	messages, err := json.Marshal(m.Messages)
	if err != nil {
		return err
	}
	buttons, err := json.Marshal(m.Buttons)
	if err != nil {
		return err
	}
	var mediaKind, mediaFileID string
	if m.Media != nil {
		mediaKind = string(m.Media.Kind)
		mediaFileID = m.Media.FileID
	}
	_, err = ex.Exec(ctx, q, m.ID, m.Name, m.DelayMinutes, messages, mediaKind, mediaFileID,
		buttons, m.TargetLanguage, m.TargetSource, m.Active, m.CreatedAt)
	return err
}

func scanAutoMessage(row pgx.Row) (*model.AutoMessage, error) {
	var m model.AutoMessage
	var messages, buttons []byte
	var mediaKind, mediaFileID string
	err := row.Scan(&m.ID, &m.Name, &m.DelayMinutes, &messages, &mediaKind, &mediaFileID,
		&buttons, &m.TargetLanguage, &m.TargetSource, &m.Active, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(messages, &m.Messages); err != nil {
		return nil, err
	}
	if len(buttons) > 0 {
		if err := json.Unmarshal(buttons, &m.Buttons); err != nil {
			return nil, err
		}
	}
	if mediaKind != "" {
		m.Media = &model.MediaRef{Kind: model.MediaKind(mediaKind), FileID: mediaFileID}
	}
	return &m, nil
}

func (r *AutoMessageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AutoMessage, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanAutoMessage(ex.QueryRow(ctx, `SELECT `+autoMessageCols+` FROM auto_messages WHERE id=$1;`, id))
}

func (r *AutoMessageRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.AutoMessage, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT `+autoMessageCols+` FROM auto_messages WHERE active ORDER BY delay_minutes;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAutoMessages(rows)
}

func (r *AutoMessageRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.AutoMessage, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := ex.Query(ctx, `SELECT `+autoMessageCols+` FROM auto_messages ORDER BY created_at OFFSET $1 LIMIT $2;`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAutoMessages(rows)
}

func collectAutoMessages(rows pgx.Rows) ([]*model.AutoMessage, error) {
	var out []*model.AutoMessage
	for rows.Next() {
		m, err := scanAutoMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *AutoMessageRepo) WasSent(ctx context.Context, tx repository.Tx, recipientID, autoMessageID string) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = ex.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sent_auto_messages WHERE recipient_id=$1 AND auto_message_id=$2);`,
		recipientID, autoMessageID).Scan(&exists)
	return exists, err
}

func (r *AutoMessageRepo) MarkSent(ctx context.Context, tx repository.Tx, recipientID, autoMessageID string) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx,
		`INSERT INTO sent_auto_messages (recipient_id, auto_message_id, sent_at) VALUES ($1,$2,$3)
		 ON CONFLICT (recipient_id, auto_message_id) DO NOTHING;`,
		recipientID, autoMessageID, time.Now())
	return err
}
