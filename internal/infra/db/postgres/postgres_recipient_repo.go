package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
)

var _ repository.RecipientRepository = (*RecipientRepo)(nil)

type RecipientRepo struct {
	pool *pgxpool.Pool
}

func NewRecipientRepo(pool *pgxpool.Pool) *RecipientRepo {
	return &RecipientRepo{pool: pool}
}

func (r *RecipientRepo) Save(ctx context.Context, tx repository.Tx, rc *model.Recipient) error {
	const q = `
INSERT INTO recipients (
  id, telegram_id, username, full_name, language, source, blocked, created_at, last_active_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (telegram_id) DO UPDATE SET
  username=$3, full_name=$4, language=$5, blocked=$7, last_active_at=$9;
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, rc.ID, rc.TelegramID, rc.Username, rc.FullName, rc.Language, rc.Source, rc.Blocked, rc.CreatedAt, rc.LastActiveAt)
	return err
}

const recipientCols = `id, telegram_id, username, full_name, language, source, blocked, created_at, last_active_at`

func scanRecipient(row pgx.Row) (*model.Recipient, error) {
	var rc model.Recipient
	err := row.Scan(&rc.ID, &rc.TelegramID, &rc.Username, &rc.FullName, &rc.Language, &rc.Source, &rc.Blocked, &rc.CreatedAt, &rc.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rc, nil
}

func (r *RecipientRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.Recipient, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanRecipient(ex.QueryRow(ctx, `SELECT `+recipientCols+` FROM recipients WHERE telegram_id=$1;`, tgID))
}

func (r *RecipientRepo) List(ctx context.Context, tx repository.Tx, filter repository.RecipientFilter, offset, limit int) ([]*model.Recipient, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}

	q := `SELECT ` + recipientCols + ` FROM recipients WHERE 1=1`
	args := []interface{}{}
	n := 0
	if !filter.IncludeBlocked {
		q += ` AND blocked = FALSE`
	}
	if filter.Language != "" {
		n++
		q += fmt.Sprintf(` AND language = $%d`, n)
		args = append(args, filter.Language)
	}
	if filter.Source != "" {
		n++
		q += fmt.Sprintf(` AND source = $%d`, n)
		args = append(args, filter.Source)
	}
	q += ` ORDER BY created_at`
	if limit > 0 {
		n++
		q += fmt.Sprintf(` LIMIT $%d`, n)
		args = append(args, limit)
	}
	if offset > 0 {
		n++
		q += fmt.Sprintf(` OFFSET $%d`, n)
		args = append(args, offset)
	}

	rows, err := ex.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Recipient
	for rows.Next() {
		var rc model.Recipient
		if err := rows.Scan(&rc.ID, &rc.TelegramID, &rc.Username, &rc.FullName, &rc.Language, &rc.Source, &rc.Blocked, &rc.CreatedAt, &rc.LastActiveAt); err != nil {
			return nil, err
		}
		out = append(out, &rc)
	}
	return out, rows.Err()
}

func (r *RecipientRepo) SetBlocked(ctx context.Context, tx repository.Tx, tgID int64, blocked bool) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, `UPDATE recipients SET blocked=$2 WHERE telegram_id=$1;`, tgID, blocked)
	return err
}

func (r *RecipientRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM recipients;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return n, nil
}

func (r *RecipientRepo) CountBlocked(ctx context.Context, tx repository.Tx) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM recipients WHERE blocked;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count blocked: %w", err)
	}
	return n, nil
}

func (r *RecipientRepo) CountByLanguage(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT language, COUNT(*) FROM recipients GROUP BY language;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, err
		}
		out[lang] = n
	}
	return out, rows.Err()
}

func (r *RecipientRepo) CountCreatedSince(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM recipients WHERE created_at >= $1;`, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count created since: %w", err)
	}
	return n, nil
}
