package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-campaign-bot/internal/config"
	"telegram-campaign-bot/internal/domain/ports/adapter"
	tele "telegram-campaign-bot/internal/infra/adapters/telegram"
	pg "telegram-campaign-bot/internal/infra/db/postgres"
	"telegram-campaign-bot/internal/infra/logging"
	"telegram-campaign-bot/internal/infra/metrics"
	red "telegram-campaign-bot/internal/infra/redis"
	"telegram-campaign-bot/internal/infra/sched"
	"telegram-campaign-bot/internal/infra/web"
	"telegram-campaign-bot/internal/usecase"
)

// Injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop messenger, relaxed auth)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().Str("version", version).Str("commit", commit).Msg("starting")
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	progressCache := red.NewProgressCache(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	recipientRepo := pg.NewRecipientRepo(pool)
	campaignRepo := pg.NewCampaignRepo(pool)
	autoMessageRepo := pg.NewAutoMessageRepo(pool)
	textRepo := pg.NewTextRepo(pool)
	runRepo := pg.NewBroadcastRunRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Use cases ----
	renderer := usecase.NewRenderer()
	dispatchCfg := usecase.DispatchConfig{
		Concurrency: cfg.Broadcast.Concurrency,
		RatePerSec:  cfg.Broadcast.RatePerSec,
		MaxRetries:  cfg.Broadcast.MaxRetries,
		BackoffBase: cfg.Broadcast.BackoffBase,
	}

	recipientUC := usecase.NewRecipientUseCase(recipientRepo, txManager, logger)
	campaignUC := usecase.NewCampaignUseCase(campaignRepo, logger)
	statsUC := usecase.NewStatsUseCase(recipientRepo, logger)
	textsUC, err := usecase.NewTextsUseCase(ctx, textRepo, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("load bot texts")
	}

	// ---- Telegram ----
	// Dev mode runs against a noop messenger: no token, no polling, sends
	// only logged.
	var messenger adapter.Messenger
	var bot *tele.Bot
	if cfg.Runtime.Dev {
		messenger = tele.NewNoopMessenger(logger)
	} else {
		bot, err = tele.NewBot(&cfg.Bot, recipientUC, campaignUC, renderer, textsUC, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		messenger = bot
	}

	broadcastUC := usecase.NewBroadcastUseCase(
		recipientRepo, campaignRepo, runRepo, messenger, renderer, locker, progressCache, logger)
	autoUC := usecase.NewAutoMessageUseCase(
		autoMessageRepo, recipientRepo, messenger, renderer,
		usecase.DispatchConfig{
			Concurrency: cfg.AutoSend.Concurrency,
			RatePerSec:  cfg.AutoSend.RatePerSec,
			MaxRetries:  cfg.Broadcast.MaxRetries,
			BackoffBase: cfg.Broadcast.BackoffBase,
		}, logger)

	if bot != nil {
		go func() {
			if err := bot.StartPolling(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Admin API ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	adminServer := web.NewServer(broadcastUC, campaignUC, recipientUC, textsUC, statsUC,
		&cfg.Admin, dispatchCfg, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: adminServer.Routes(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("admin api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin api server error")
		}
	}()

	// ---- Auto-message cron ----
	autoSender := sched.NewAutoSender(cfg.AutoSend.Cron, autoUC, logger)
	if err := autoSender.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("auto sender")
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	if bot != nil {
		bot.StopPolling()
	}
	autoSender.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin api shutdown")
	}
	cancel()
}
