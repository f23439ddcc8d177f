// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ecocash-activation/internal/config"
	"ecocash-activation/internal/domain/ports/adapter"
	tele "ecocash-activation/internal/infra/adapters/telegram"
	"ecocash-activation/internal/infra/adapters/whatsapp"
	"ecocash-activation/internal/infra/api"
	pg "ecocash-activation/internal/infra/db/postgres"
	"ecocash-activation/internal/infra/i18n"
	"ecocash-activation/internal/infra/logging"
	"ecocash-activation/internal/infra/metrics"
	red "ecocash-activation/internal/infra/redis"
	"ecocash-activation/internal/infra/sched"
	"ecocash-activation/internal/infra/web"
	"ecocash-activation/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted phones)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	if cfg.Database.Migrate {
		if err := pg.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
		logger.Info().Msg("migrations applied")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	codeRepo := pg.NewCodeRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Use cases ----
	ledgerUC := usecase.NewLedgerUseCase(paymentRepo, logger)
	issuerUC := usecase.NewIssuerUseCase(codeRepo, tm, logger)
	ingestUC := usecase.NewIngestUseCase(ledgerUC, issuerUC, tm, cfg.Subscription.PriceDecimal(), cfg.Subscription.CodeTTL)
	redeemerUC := usecase.NewRedeemerUseCase(codeRepo, subRepo, tm,
		cfg.Subscription.GrantWindow, cfg.Subscription.SubscriptionWindow, logger)
	statsUC := usecase.NewStatsUseCase(codeRepo, logger)

	// ---- Outbound adapters ----
	var notifier adapter.Notifier
	if cfg.WhatsApp.Enabled() {
		notifier, err = whatsapp.NewCloudNotifier(cfg.WhatsApp.BaseURL, cfg.WhatsApp.PhoneNumberID,
			cfg.WhatsApp.AccessToken, cfg.WhatsApp.NotifyTimeout, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("whatsapp notifier")
		}
	} else {
		logger.Warn().Msg("whatsapp credentials missing; replies will only be logged")
		notifier = whatsapp.NewNoopNotifier(logger)
	}

	var alerter adapter.OperatorAlerter = tele.NewNoopAlerter(logger)
	if cfg.Alerts.TelegramToken != "" && len(cfg.Alerts.ChatIDs) > 0 {
		a, err := tele.NewAlerter(cfg.Alerts.TelegramToken, cfg.Alerts.ChatIDs, logger)
		if err != nil {
			// alerts are best effort; ingestion must not depend on Telegram
			logger.Error().Err(err).Msg("telegram alerter disabled")
		} else {
			alerter = a
		}
	}

	replies, err := i18n.NewTranslator(i18n.LocalesFS, cfg.WhatsApp.Language)
	if err != nil {
		logger.Fatal().Err(err).Msg("reply templates")
	}

	dispatcherUC := usecase.NewDispatcherUseCase(ingestUC, notifier, alerter, usecase.DispatcherOptions{
		VerifyToken:        cfg.WhatsApp.VerifyToken,
		NotifyTimeout:      cfg.WhatsApp.NotifyTimeout,
		CodeTTL:            cfg.Subscription.CodeTTL,
		SubscriptionWindow: cfg.Subscription.SubscriptionWindow,
		Dev:                cfg.Runtime.Dev,
		Replies:            replies,
	}, logger)

	// ---- Redis (optional) ----
	var limiter api.Limiter
	if cfg.Redis.URL != "" && cfg.Redeem.RateLimit > 0 {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient, cfg.Redeem.RateLimit, cfg.Redeem.RateWindow)
		logger.Info().Int("limit", cfg.Redeem.RateLimit).Dur("window", cfg.Redeem.RateWindow).Msg("redeem rate limiting enabled")
	}

	// ---- Admin API ----
	var auth *web.AuthManager
	if cfg.Admin.SessionSecret != "" {
		auth = web.NewAuthManager(cfg.Admin.SessionSecret, cfg.Admin.SecureCookie, cfg.Admin.SessionTTL)
	}
	if cfg.Admin.APIKey == "" {
		logger.Warn().Msg("admin.api_key not set; admin API is disabled")
	}
	admin := web.NewServer(statsUC, issuerUC, cfg.Subscription.UnlockKeyTTL, cfg.Admin.APIKey, auth, logger)

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Dispatcher:     dispatcherUC,
		Redeemer:       redeemerUC,
		Limiter:        limiter,
		Admin:          admin,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	})
	server := api.NewServer(cfg.Server.Port, router, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Stats worker ----
	worker := sched.NewStatsWorker(cfg.Scheduler.StatsInterval, statsUC, pool, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
