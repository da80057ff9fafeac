package redis

import (
	"context"
	"encoding/json"
	"time"

	"telegram-campaign-bot/internal/domain/model"
)

// ProgressCache mirrors in-flight run counters into Redis so any admin
// process can answer progress polls, not just the one driving the run.
type ProgressCache struct {
	cli RedisClient
	ttl time.Duration
}

func NewProgressCache(cli RedisClient, ttl time.Duration) *ProgressCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ProgressCache{cli: cli, ttl: ttl}
}

func progressKey(runID string) string { return "broadcast:progress:" + runID }

func (c *ProgressCache) Publish(ctx context.Context, runID string, p model.Progress) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.cli.Set(ctx, progressKey(runID), string(b), c.ttl)
}

// Fetch returns the last published progress for a run, if any.
func (c *ProgressCache) Fetch(ctx context.Context, runID string) (model.Progress, error) {
	var p model.Progress
	raw, err := c.cli.Get(ctx, progressKey(runID))
	if err != nil {
		return p, err
	}
	err = json.Unmarshal([]byte(raw), &p)
	return p, err
}
