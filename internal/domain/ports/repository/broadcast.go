package repository

import (
	"context"
	"time"

	"telegram-campaign-bot/internal/domain/model"
)

// BroadcastRunRepository persists the durable trace of a run: a run row plus
// append-only outcome rows. Outcomes are immutable once written.
type BroadcastRunRepository interface {
	CreateRun(ctx context.Context, tx Tx, runID, campaignID string, total int, startedAt time.Time) error
	AppendOutcome(ctx context.Context, tx Tx, runID string, o model.DeliveryOutcome) error
	FinishRun(ctx context.Context, tx Tx, runID string, state model.RunState, finishedAt time.Time) error
	ListOutcomes(ctx context.Context, tx Tx, runID string) ([]model.DeliveryOutcome, error)
}
