package usecase

import (
	"context"
	"sync/atomic"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ TextsUseCase = (*textsUC)(nil)

// TextsUseCase holds the immutable snapshot of localized bot texts. The
// snapshot is loaded once at startup and replaced wholesale by Reload; there
// is no ambient global cache and no in-place mutation.
type TextsUseCase interface {
	Snapshot() *model.TextSnapshot
	Reload(ctx context.Context) error
	UpdateText(ctx context.Context, t model.BotText) error
	ListTexts(ctx context.Context) ([]model.BotText, error)
}

type textsUC struct {
	texts repository.TextRepository
	snap  atomic.Pointer[model.TextSnapshot]
	log   *zerolog.Logger
}

func NewTextsUseCase(ctx context.Context, texts repository.TextRepository, logger *zerolog.Logger) (*textsUC, error) {
	uc := &textsUC{texts: texts, log: logger}
	if err := uc.Reload(ctx); err != nil {
		return nil, err
	}
	return uc, nil
}

func (u *textsUC) Snapshot() *model.TextSnapshot {
	return u.snap.Load()
}

func (u *textsUC) Reload(ctx context.Context) error {
	all, err := u.texts.ListTexts(ctx, repository.NoTX)
	if err != nil {
		return err
	}
	langs, err := u.texts.ListLanguages(ctx, repository.NoTX)
	if err != nil {
		return err
	}
	u.snap.Store(model.NewTextSnapshot(all, langs))
	u.log.Info().Int("texts", len(all)).Int("languages", len(langs)).Msg("text snapshot reloaded")
	return nil
}

// UpdateText persists the change and refreshes the snapshot so bot flows see
// it on their next lookup.
func (u *textsUC) UpdateText(ctx context.Context, t model.BotText) error {
	if t.Key == "" || t.Language == "" {
		return domain.ErrInvalidArgument
	}
	if err := u.texts.UpsertText(ctx, repository.NoTX, t); err != nil {
		return err
	}
	return u.Reload(ctx)
}

func (u *textsUC) ListTexts(ctx context.Context) ([]model.BotText, error) {
	return u.texts.ListTexts(ctx, repository.NoTX)
}
