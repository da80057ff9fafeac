package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
)

var _ repository.TextRepository = (*TextRepo)(nil)

type TextRepo struct {
	pool *pgxpool.Pool
}

func NewTextRepo(pool *pgxpool.Pool) *TextRepo {
	return &TextRepo{pool: pool}
}

func (r *TextRepo) ListTexts(ctx context.Context, tx repository.Tx) ([]model.BotText, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT key, language, text, description, updated_at FROM bot_texts ORDER BY key, language;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BotText
	for rows.Next() {
		var t model.BotText
		if err := rows.Scan(&t.Key, &t.Language, &t.Text, &t.Description, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TextRepo) ListLanguages(ctx context.Context, tx repository.Tx) ([]model.Language, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT code, name, flag, active, is_default, sort_order FROM languages ORDER BY sort_order, code;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Language
	for rows.Next() {
		var l model.Language
		if err := rows.Scan(&l.Code, &l.Name, &l.Flag, &l.Active, &l.Default, &l.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *TextRepo) UpsertText(ctx context.Context, tx repository.Tx, t model.BotText) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, `
INSERT INTO bot_texts (key, language, text, description, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (key, language) DO UPDATE SET text=$3, description=$4, updated_at=$5;`,
		t.Key, t.Language, t.Text, t.Description, time.Now())
	return err
}

func (r *TextRepo) SaveLanguage(ctx context.Context, tx repository.Tx, l model.Language) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, `
INSERT INTO languages (code, name, flag, active, is_default, sort_order)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (code) DO UPDATE SET name=$2, flag=$3, active=$4, is_default=$5, sort_order=$6;`,
		l.Code, l.Name, l.Flag, l.Active, l.Default, l.SortOrder)
	return err
}
