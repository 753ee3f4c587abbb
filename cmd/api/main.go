package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/audit"
	"server/internal/bankfeed"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/infra/geoip"
	"server/internal/insights"
	"server/internal/middleware"
	"server/internal/notify"
	"server/internal/quota"
	"server/internal/retention"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	if cfg.RunMigrations {
		if err := infra.Migrate(cfg); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	txRunner := infra.NewPoolTxRunner(pool, logger)
	caps := cfg.Capabilities()

	clients := repo.NewClientRepository(runner)
	users := repo.NewUserRepository(runner)
	bankItems := repo.NewBankItemRepository(runner, txRunner)
	purgeStore := repo.NewPurgeStore(txRunner, caps.HasAuditLog)
	auditSink := audit.NewSink(runner, caps.HasAuditLog, logger)

	var dispatcher notify.Dispatcher = &notify.LogDispatcher{Logger: logger}
	if caps.HasMailer {
		ses, err := notify.NewSESDispatcher(cfg.SESRegion, cfg.MailFrom, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("ses dispatcher init failed")
		}
		dispatcher = ses
	}

	var geo geoip.CountryResolver
	if resolver, err := geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable")
	} else {
		geo = resolver
	}

	quotaEngine := quota.NewEngine(clients, users, dispatcher, logger)
	policy := retention.NewPolicy(cfg.RetentionRules())

	var connector bankfeed.Connector
	if caps.HasBankFeed {
		secret := cfg.PlaidSecret
		if secret == "" {
			if dbSecret, err := credentials.NewStore(runner).PlaidSecret(ctx); err == nil && dbSecret != "" {
				secret = dbSecret
			}
		}
		connector = bankfeed.NewPlaidConnector(cfg.PlaidClientID, secret, cfg.PlaidEnv)
	}
	bankFeed := bankfeed.NewService(bankItems, connector, auditSink, cfg.RetentionRules(), logger)

	orchestrator := retention.NewOrchestrator(users, bankItems, purgeStore, auditSink, dispatcher, policy, geo, logger)

	genai, err := insights.NewGenAIClient(insights.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("genai client init failed")
	}
	insightSvc := insights.NewService(runner, genai, logger)

	fileStore, err := storage.NewFileStore(cfg.ExportStoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("export storage init failed")
	}
	exporter := storage.NewExporter(runner, fileStore, logger)

	app := &handlers.App{
		SQL:       runner,
		Users:     users,
		Clients:   clients,
		Quota:     quotaEngine,
		Retention: orchestrator,
		BankFeed:  bankFeed,
		Insights:  insightSvc,
		Exporter:  exporter,
		Audit:     auditSink,
		Caps:      caps,
		Logger:    logger,
	}

	var lookup middleware.CountryLookup
	if geo != nil {
		lookup = geo.CountryCode
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   "en",
		CountryLookup:   lookup,
		QuotaEngine:     quotaEngine,
		Clients:         clients,
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
