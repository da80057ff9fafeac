package usecase

import (
	"context"
	"time"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/infra/worker"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SendFunc performs the actual external call for one recipient.
type SendFunc func(ctx context.Context, telegramID int64, p model.Payload) error

// RenderFunc maps a recipient to the concrete payload to deliver.
type RenderFunc func(r *model.Recipient) (model.Payload, error)

// DispatchConfig bounds one run. Concurrency caps parallelism, RatePerSec
// caps throughput; both hold simultaneously.
type DispatchConfig struct {
	Concurrency int
	RatePerSec  int
	MaxRetries  int // retries after the first attempt; negative means none
	BackoffBase time.Duration
}

func (c DispatchConfig) withDefaults() DispatchConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 25 // Telegram tolerates ~30 msg/s; stay under
	}
	// Zero means unset, not "no retries": rate-limited and temporary
	// failures get two more tries by default. Negative disables retries.
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	return c
}

// Dispatcher delivers one rendered payload per recipient through a bounded
// worker pool, pacing all attempts through a shared token bucket. It emits
// exactly one DeliveryOutcome per unique recipient, in completion order.
type Dispatcher struct {
	cfg     DispatchConfig
	limiter *rate.Limiter
	send    SendFunc
	log     *zerolog.Logger
}

func NewDispatcher(cfg DispatchConfig, send SendFunc, logger *zerolog.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		send:    send,
		log:     logger,
	}
}

// Dispatch blocks until every recipient has an outcome. Duplicates collapse
// to one delivery attempt. Cancelling ctx stops new sends; recipients never
// attempted are emitted as skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []*model.Recipient, render RenderFunc, emit func(model.DeliveryOutcome)) {
	pool := worker.NewPool(d.cfg.Concurrency, d.log)
	pool.Start(ctx)

	seen := make(map[int64]struct{}, len(recipients))
	for _, r := range recipients {
		if r == nil {
			continue
		}
		if _, dup := seen[r.TelegramID]; dup {
			continue
		}
		seen[r.TelegramID] = struct{}{}
		rcpt := r
		_ = pool.Submit(func(taskCtx context.Context) error {
			emit(d.deliver(taskCtx, rcpt, render))
			return nil
		})
	}
	pool.Close()
}

// deliver runs the sequential retry chain for a single recipient and
// produces its terminal outcome.
func (d *Dispatcher) deliver(ctx context.Context, r *model.Recipient, render RenderFunc) model.DeliveryOutcome {
	out := model.DeliveryOutcome{
		RecipientID: r.TelegramID,
		Username:    r.Username,
		At:          time.Now(),
	}

	if ctx.Err() != nil {
		out.Status = model.DeliverySkipped
		out.Error = "run cancelled before dispatch"
		return out
	}

	payload, err := render(r)
	if err != nil {
		out.Status = model.DeliveryFailed
		out.Error = err.Error()
		return out
	}

	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := d.cfg.BackoffBase << (attempt - 1)
			if hint := domain.RetryAfter(lastErr); hint > 0 {
				wait = hint
			}
			select {
			case <-ctx.Done():
				// Cancelled mid-backoff: the recipient was attempted, so
				// this ends as failed, not skipped.
				out.Status = model.DeliveryFailed
				out.Error = lastErr.Error()
				out.Attempts = attempt
				out.At = time.Now()
				return out
			case <-time.After(wait):
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			break // cancelled while pacing
		}

		out.Attempts = attempt + 1
		lastErr = d.send(ctx, r.TelegramID, payload)
		if lastErr == nil {
			out.Status = model.DeliverySent
			out.At = time.Now()
			return out
		}
		if !domain.Retriable(lastErr) {
			break
		}
	}

	out.At = time.Now()
	if out.Attempts == 0 {
		out.Status = model.DeliverySkipped
		out.Error = "run cancelled before dispatch"
		return out
	}
	out.Status = model.DeliveryFailed
	out.Error = lastErr.Error()
	return out
}
