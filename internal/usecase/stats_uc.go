package usecase

import (
	"context"
	"time"

	"telegram-campaign-bot/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Totals(ctx context.Context) (total, blocked int, byLanguage map[string]int, err error)
	NewRecipients(ctx context.Context, since time.Time) (int, error)
}

type statsUC struct {
	recipients repository.RecipientRepository
	log        *zerolog.Logger
}

func NewStatsUseCase(recipients repository.RecipientRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{recipients: recipients, log: logger}
}

func (s *statsUC) Totals(ctx context.Context) (int, int, map[string]int, error) {
	total, err := s.recipients.Count(ctx, repository.NoTX)
	if err != nil {
		return 0, 0, nil, err
	}
	blocked, err := s.recipients.CountBlocked(ctx, repository.NoTX)
	if err != nil {
		return 0, 0, nil, err
	}
	byLang, err := s.recipients.CountByLanguage(ctx, repository.NoTX)
	if err != nil {
		return 0, 0, nil, err
	}
	return total, blocked, byLang, nil
}

func (s *statsUC) NewRecipients(ctx context.Context, since time.Time) (int, error) {
	return s.recipients.CountCreatedSince(ctx, repository.NoTX, since)
}
