package repository

import (
	"context"

	"telegram-campaign-bot/internal/domain/model"
)

type TextRepository interface {
	ListTexts(ctx context.Context, tx Tx) ([]model.BotText, error)
	ListLanguages(ctx context.Context, tx Tx) ([]model.Language, error)
	UpsertText(ctx context.Context, tx Tx, t model.BotText) error
	SaveLanguage(ctx context.Context, tx Tx, l model.Language) error
}
