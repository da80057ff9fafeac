package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
)

var _ repository.BroadcastRunRepository = (*BroadcastRunRepo)(nil)

// BroadcastRunRepo keeps the durable trace of broadcast runs. Outcome rows
// are append-only and never updated.
type BroadcastRunRepo struct {
	pool *pgxpool.Pool
}

func NewBroadcastRunRepo(pool *pgxpool.Pool) *BroadcastRunRepo {
	return &BroadcastRunRepo{pool: pool}
}

func (r *BroadcastRunRepo) CreateRun(ctx context.Context, tx repository.Tx, runID, campaignID string, total int, startedAt time.Time) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, `
INSERT INTO broadcast_runs (id, campaign_id, total, state, started_at)
VALUES ($1,$2,$3,$4,$5);`,
		runID, campaignID, total, string(model.RunRunning), startedAt)
	return err
}

func (r *BroadcastRunRepo) AppendOutcome(ctx context.Context, tx repository.Tx, runID string, o model.DeliveryOutcome) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, `
INSERT INTO broadcast_outcomes (run_id, recipient_tg_id, username, status, error, attempts, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (run_id, recipient_tg_id) DO NOTHING;`,
		runID, o.RecipientID, o.Username, string(o.Status), o.Error, o.Attempts, o.At)
	return err
}

func (r *BroadcastRunRepo) FinishRun(ctx context.Context, tx repository.Tx, runID string, state model.RunState, finishedAt time.Time) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, `UPDATE broadcast_runs SET state=$2, finished_at=$3 WHERE id=$1;`,
		runID, string(state), finishedAt)
	return err
}

func (r *BroadcastRunRepo) ListOutcomes(ctx context.Context, tx repository.Tx, runID string) ([]model.DeliveryOutcome, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `
SELECT recipient_tg_id, username, status, error, attempts, recorded_at
  FROM broadcast_outcomes WHERE run_id=$1 ORDER BY recorded_at;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DeliveryOutcome
	for rows.Next() {
		var o model.DeliveryOutcome
		var status string
		if err := rows.Scan(&o.RecipientID, &o.Username, &status, &o.Error, &o.Attempts, &o.At); err != nil {
			return nil, err
		}
		o.Status = model.DeliveryStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}
