package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/adapter"
	"telegram-campaign-bot/internal/domain/ports/repository"
	"telegram-campaign-bot/internal/infra/logging"
	"telegram-campaign-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ AutoMessageUseCase = (*autoMessageUC)(nil)

// AutoMessageUseCase runs one pass of the delayed follow-up pipeline. The
// scheduler owns the cadence; this use case owns one pass.
type AutoMessageUseCase interface {
	// RunOnce sends every due auto message and returns how many recipients
	// were delivered to.
	RunOnce(ctx context.Context) (int, error)
}

type autoMessageUC struct {
	autoMessages repository.AutoMessageRepository
	recipients   repository.RecipientRepository
	messenger    adapter.Messenger
	renderer     *Renderer
	cfg          DispatchConfig
	log          *zerolog.Logger
}

func NewAutoMessageUseCase(
	autoMessages repository.AutoMessageRepository,
	recipients repository.RecipientRepository,
	messenger adapter.Messenger,
	renderer *Renderer,
	cfg DispatchConfig,
	logger *zerolog.Logger,
) *autoMessageUC {
	return &autoMessageUC{
		autoMessages: autoMessages,
		recipients:   recipients,
		messenger:    messenger,
		renderer:     renderer,
		cfg:          cfg,
		log:          logger,
	}
}

func (u *autoMessageUC) RunOnce(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "AutoMessageUC.RunOnce")()

	active, err := u.autoMessages.ListActive(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}

	totalSent := 0
	for _, msg := range active {
		if ctx.Err() != nil {
			return totalSent, ctx.Err()
		}
		sent, err := u.runMessage(ctx, msg)
		if err != nil {
			u.log.Error().Err(err).Str("auto_message", msg.Name).Msg("auto message pass failed")
			continue
		}
		totalSent += sent
	}
	return totalSent, nil
}

func (u *autoMessageUC) runMessage(ctx context.Context, msg *model.AutoMessage) (int, error) {
	filter := repository.RecipientFilter{
		Language: msg.TargetLanguage,
		Source:   msg.TargetSource,
	}
	candidates, err := u.recipients.List(ctx, repository.NoTX, filter, 0, 0)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	due := make([]*model.Recipient, 0, len(candidates))
	for _, r := range candidates {
		if !msg.Matches(r, now) {
			continue
		}
		already, err := u.autoMessages.WasSent(ctx, repository.NoTX, r.ID, msg.ID)
		if err != nil {
			return 0, err
		}
		if already {
			continue
		}
		due = append(due, r)
	}
	if len(due) == 0 {
		return 0, nil
	}

	u.log.Info().Str("auto_message", msg.Name).Int("due", len(due)).Msg("sending auto message")

	byTgID := make(map[int64]*model.Recipient, len(due))
	for _, r := range due {
		byTgID[r.TelegramID] = r
	}

	var sent atomic.Int64
	dispatcher := NewDispatcher(u.cfg, u.messenger.Send, u.log)
	dispatcher.Dispatch(ctx, due, func(r *model.Recipient) (model.Payload, error) {
		return u.renderer.Render(msg.TemplateFor(r.Language), r)
	}, func(o model.DeliveryOutcome) {
		metrics.IncAutoMessage(string(o.Status))
		if o.Status != model.DeliverySent {
			return
		}
		sent.Add(1)
		r := byTgID[o.RecipientID]
		if err := u.autoMessages.MarkSent(context.Background(), repository.NoTX, r.ID, msg.ID); err != nil {
			u.log.Error().Err(err).Int64("tg_id", o.RecipientID).Msg("failed to mark auto message sent")
		}
	})
	return int(sent.Load()), nil
}
