package sched

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"telegram-campaign-bot/internal/usecase"
)

// AutoSender drives the delayed follow-up messages on a cron schedule.
// Each tick runs the auto-message sweep once; overlapping ticks are skipped
// so a slow sweep never stacks up behind itself.
type AutoSender struct {
	spec   string
	autoUC usecase.AutoMessageUseCase
	cron   *cron.Cron
	log    *zerolog.Logger

	running chan struct{}
}

func NewAutoSender(spec string, autoUC usecase.AutoMessageUseCase, logger *zerolog.Logger) *AutoSender {
	senderLog := logger.With().Str("component", "AutoSender").Logger()
	return &AutoSender{
		spec:    spec,
		autoUC:  autoUC,
		cron:    cron.New(),
		log:     &senderLog,
		running: make(chan struct{}, 1),
	}
}

func (w *AutoSender) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.spec, func() {
		select {
		case w.running <- struct{}{}:
			defer func() { <-w.running }()
		default:
			w.log.Warn().Msg("previous auto-message sweep still running, skipping tick")
			return
		}

		n, err := w.autoUC.RunOnce(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("auto-message sweep failed")
			return
		}
		if n > 0 {
			w.log.Info().Int("sent", n).Msg("auto messages delivered")
		}
	})
	if err != nil {
		return err
	}
	w.log.Info().Str("schedule", w.spec).Msg("starting auto sender")
	w.cron.Start()
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (w *AutoSender) Stop() {
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
	w.log.Info().Msg("auto sender stopped")
}
