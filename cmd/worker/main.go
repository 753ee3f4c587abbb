package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/audit"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/notify"
	"server/internal/quota"
	"server/internal/retention"
)

// The worker runs the periodic sweeps that keep quota cycles and retention
// state moving without any request traffic: quota resets on the configured
// cadence and the inactivity/purge ladder once per retention interval.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
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
			logger.Fatal().Err(err).Msg("worker: ses dispatcher init failed")
		}
		dispatcher = ses
	}

	var geo geoip.CountryResolver
	if resolver, err := geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		logger.Warn().Err(err).Msg("worker: geoip unavailable")
	} else {
		geo = resolver
	}

	engine := quota.NewEngine(clients, users, dispatcher, logger)
	policy := retention.NewPolicy(cfg.RetentionRules())
	orchestrator := retention.NewOrchestrator(users, bankItems, purgeStore, auditSink, dispatcher, policy, geo, logger)

	logger.Info().
		Dur("quota_interval", cfg.QuotaSweepInterval).
		Dur("retention_interval", cfg.RetentionSweepInterval).
		Msg("worker: started")

	// Catch up on resets that came due while the worker was down.
	runQuotaSweep(ctx, engine, logger)

	quotaTicker := time.NewTicker(cfg.QuotaSweepInterval)
	defer quotaTicker.Stop()
	retentionTicker := time.NewTicker(cfg.RetentionSweepInterval)
	defer retentionTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker: stopped")
			return
		case <-quotaTicker.C:
			runQuotaSweep(ctx, engine, logger)
		case <-retentionTicker.C:
			runRetentionSweep(ctx, orchestrator, logger)
		}
	}
}

func runQuotaSweep(ctx context.Context, engine *quota.Engine, logger infra.Logger) {
	reset, err := engine.ResetDueClients(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("worker: quota sweep failed")
		return
	}
	if reset > 0 {
		logger.Info().Int("clients_reset", reset).Msg("worker: quota cycles rolled")
	}
}

func runRetentionSweep(ctx context.Context, orchestrator *retention.Orchestrator, logger infra.Logger) {
	result, err := orchestrator.SweepRetention(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("worker: retention sweep failed")
		return
	}
	logger.Info().
		Int("warned", result.Warned).
		Int("marked", result.Marked).
		Int("purged", result.Purged).
		Int("items_purged", result.ItemsPurged).
		Int("failed", result.Failed).
		Msg("worker: retention sweep complete")
}
