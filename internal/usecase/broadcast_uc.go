package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"telegram-campaign-bot/internal/domain"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/adapter"
	"telegram-campaign-bot/internal/domain/ports/repository"
	"telegram-campaign-bot/internal/infra/logging"
	"telegram-campaign-bot/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ BroadcastUseCase = (*broadcastUC)(nil)

// RunLocker serializes broadcast runs per campaign across processes.
type RunLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// ProgressSink mirrors mid-run progress somewhere other admin processes can
// poll it (Redis in production). Publishing is best-effort; failures are
// logged, not fatal. Fetch serves progress polls for runs this process does
// not drive.
type ProgressSink interface {
	Publish(ctx context.Context, runID string, p model.Progress) error
	Fetch(ctx context.Context, runID string) (model.Progress, error)
}

type BroadcastUseCase interface {
	// Start validates the campaign templates, snapshots the audience and
	// launches the run in the background, returning its id.
	Start(ctx context.Context, campaignID string, filter repository.RecipientFilter, cfg DispatchConfig) (string, error)
	Progress(runID string) (model.Progress, error)
	Cancel(runID string) error
	Report(runID string) (model.BroadcastReport, error)
}

type broadcastRun struct {
	id         string
	campaignID string
	agg        *reportAggregator
	cancel     context.CancelFunc
	done       chan struct{}

	mu        sync.Mutex
	state     model.RunState
	cancelled bool
}

func (r *broadcastRun) setState(s model.RunState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *broadcastRun) currentState() model.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

type broadcastUC struct {
	recipients repository.RecipientRepository
	campaigns  repository.CampaignRepository
	runsRepo   repository.BroadcastRunRepository
	messenger  adapter.Messenger
	renderer   *Renderer
	locker     RunLocker
	progress   ProgressSink
	log        *zerolog.Logger

	mu   sync.Mutex
	runs map[string]*broadcastRun
}

func NewBroadcastUseCase(
	recipients repository.RecipientRepository,
	campaigns repository.CampaignRepository,
	runsRepo repository.BroadcastRunRepository,
	messenger adapter.Messenger,
	renderer *Renderer,
	locker RunLocker,
	progress ProgressSink,
	logger *zerolog.Logger,
) *broadcastUC {
	return &broadcastUC{
		recipients: recipients,
		campaigns:  campaigns,
		runsRepo:   runsRepo,
		messenger:  messenger,
		renderer:   renderer,
		locker:     locker,
		progress:   progress,
		log:        logger,
		runs:       make(map[string]*broadcastRun),
	}
}

func (uc *broadcastUC) Start(ctx context.Context, campaignID string, filter repository.RecipientFilter, cfg DispatchConfig) (string, error) {
	defer logging.TraceDuration(uc.log, "BroadcastUC.Start")()

	campaign, err := uc.campaigns.FindByID(ctx, repository.NoTX, campaignID)
	if err != nil {
		return "", err
	}

	// Fail fast: every language body must render before anything is sent.
	for lang := range campaign.Messages {
		if err := uc.renderer.ValidateTemplate(campaign.TemplateFor(lang)); err != nil {
			return "", err
		}
	}

	// A language-pinned campaign only ever reaches that language.
	if campaign.Language != "" {
		if filter.Language != "" && filter.Language != campaign.Language {
			return "", domain.ErrInvalidArgument
		}
		filter.Language = campaign.Language
	}

	audience, err := uc.recipients.List(ctx, repository.NoTX, filter, 0, 0)
	if err != nil {
		return "", err
	}
	if len(audience) == 0 {
		return "", domain.ErrInvalidArgument
	}

	lockKey := "broadcast:campaign:" + campaignID
	token, err := uc.locker.TryLock(ctx, lockKey, time.Hour)
	if err != nil {
		return "", domain.ErrBroadcastInFlight
	}

	runID := ulid.Make().String()
	// Duplicate recipients collapse; the aggregator total counts unique ids.
	total := uniqueCount(audience)

	if err := uc.runsRepo.CreateRun(ctx, repository.NoTX, runID, campaignID, total, time.Now()); err != nil {
		_ = uc.locker.Unlock(ctx, lockKey, token)
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &broadcastRun{
		id:         runID,
		campaignID: campaignID,
		agg:        newReportAggregator(total),
		cancel:     cancel,
		done:       make(chan struct{}),
		state:      model.RunRunning,
	}
	if err := uc.register(run); err != nil {
		cancel()
		_ = uc.locker.Unlock(ctx, lockKey, token)
		return "", err
	}

	log := uc.log.With().Str("run_id", runID).Str("campaign_id", campaignID).Logger()
	log.Info().Int("total", total).Msg("broadcast run starting")
	metrics.IncBroadcastRun()

	dispatcher := NewDispatcher(cfg, uc.classifiedSend, &log)
	render := func(r *model.Recipient) (model.Payload, error) {
		return uc.renderer.Render(campaign.TemplateFor(r.Language), r)
	}

	go func() {
		defer close(run.done)
		defer func() {
			if err := uc.locker.Unlock(context.Background(), lockKey, token); err != nil {
				log.Warn().Err(err).Msg("failed to release campaign lock")
			}
		}()

		dispatcher.Dispatch(runCtx, audience, render, func(o model.DeliveryOutcome) {
			uc.recordOutcome(run, o, &log)
		})

		final := model.RunCompleted
		run.mu.Lock()
		if run.cancelled {
			final = model.RunCancelled
		}
		run.state = final
		run.mu.Unlock()

		if err := uc.runsRepo.FinishRun(context.Background(), repository.NoTX, runID, final, time.Now()); err != nil {
			log.Error().Err(err).Msg("failed to finish run record")
		}
		uc.publishProgress(run)

		p := run.agg.Progress()
		log.Info().
			Str("state", string(final)).
			Int("sent", p.Sent).
			Int("failed", p.Failed).
			Int("skipped", p.Skipped).
			Msg("broadcast run finished")
	}()

	return runID, nil
}

// recordOutcome is the single append path for one outcome: in-memory
// aggregation first, then the durable append-only mirror and side effects.
func (uc *broadcastUC) recordOutcome(run *broadcastRun, o model.DeliveryOutcome, log *zerolog.Logger) {
	if !run.agg.Append(o) {
		log.Warn().Int64("tg_id", o.RecipientID).Msg("duplicate outcome dropped")
		return
	}
	metrics.IncBroadcastOutcome(string(o.Status))

	ctx := context.Background()
	if err := uc.runsRepo.AppendOutcome(ctx, repository.NoTX, run.id, o); err != nil {
		log.Error().Err(err).Int64("tg_id", o.RecipientID).Msg("failed to persist outcome")
	}
	uc.publishProgress(run)
}

func (uc *broadcastUC) publishProgress(run *broadcastRun) {
	if uc.progress == nil {
		return
	}
	if err := uc.progress.Publish(context.Background(), run.id, run.agg.Progress()); err != nil {
		uc.log.Debug().Err(err).Str("run_id", run.id).Msg("progress publish failed")
	}
}

// classifiedSend adapts the messenger to the dispatcher's SendFunc and
// flips the blocked flag when the API reports the recipient is unreachable
// for good.
func (uc *broadcastUC) classifiedSend(ctx context.Context, telegramID int64, p model.Payload) error {
	metrics.SendStarted()
	start := time.Now()
	err := uc.messenger.Send(ctx, telegramID, p)
	metrics.ObserveSendLatency(time.Since(start), err == nil)
	metrics.SendFinished()

	var perm *domain.PermanentError
	if errors.As(err, &perm) {
		if berr := uc.recipients.SetBlocked(ctx, repository.NoTX, telegramID, true); berr != nil {
			uc.log.Warn().Err(berr).Int64("tg_id", telegramID).Msg("failed to mark recipient blocked")
		}
	}
	return err
}

// Progress answers from the local run registry first; runs driven by
// another admin process are served from the mirrored counters.
func (uc *broadcastUC) Progress(runID string) (model.Progress, error) {
	run, err := uc.lookup(runID)
	if err == nil {
		return run.agg.Progress(), nil
	}
	if uc.progress != nil {
		if p, ferr := uc.progress.Fetch(context.Background(), runID); ferr == nil {
			return p, nil
		}
	}
	return model.Progress{}, err
}

// Cancel stops new dispatches; in-flight sends finish and the run settles
// into the cancelled state once the pool drains.
func (uc *broadcastUC) Cancel(runID string) error {
	run, err := uc.lookup(runID)
	if err != nil {
		return err
	}
	run.mu.Lock()
	if run.state != model.RunRunning {
		run.mu.Unlock()
		return domain.ErrRunFinished
	}
	run.cancelled = true
	run.mu.Unlock()
	run.cancel()
	return nil
}

func (uc *broadcastUC) Report(runID string) (model.BroadcastReport, error) {
	run, err := uc.lookup(runID)
	if err != nil {
		return model.BroadcastReport{}, err
	}
	return run.agg.Report(run.id, run.currentState()), nil
}

// Wait blocks until the run's pool drains. Exposed for tests and shutdown.
func (uc *broadcastUC) Wait(runID string) error {
	run, err := uc.lookup(runID)
	if err != nil {
		return err
	}
	<-run.done
	return nil
}

func (uc *broadcastUC) register(run *broadcastRun) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, exists := uc.runs[run.id]; exists {
		return domain.ErrRunAlreadyExists
	}
	uc.runs[run.id] = run
	return nil
}

func (uc *broadcastUC) lookup(runID string) (*broadcastRun, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	run, ok := uc.runs[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

func uniqueCount(recipients []*model.Recipient) int {
	seen := make(map[int64]struct{}, len(recipients))
	for _, r := range recipients {
		if r != nil {
			seen[r.TelegramID] = struct{}{}
		}
	}
	return len(seen)
}
