package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/notify"
	"ledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(""))
	logger := cli.SetupLogger(cfg.LogLevel)
	logger.Info("Starting ledger-sync")

	res, err := cli.OpenBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}

	stats := &taskStats{counts: map[string]int{}}
	store := res.NewLedger(cfg.Location(), logger, worker.WithObserver(stats.observe))
	if err := store.Load(context.Background()); err != nil {
		logger.Warn("Starting from a partial snapshot", log.FieldError, err)
	}

	// background covers every goroutine that schedules store tasks; the
	// store is closed only after it drains.
	var background sync.WaitGroup
	background.Add(1)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down ledger-sync...")
		background.Wait()
		store.Close()
		if err := store.Save(ctx); err != nil {
			logger.Error("Final save failed", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	})

	store.AttachIdentity(ctx, cfg.UserID)
	if cfg.UserID == "" {
		logger.Info("No LEDGER_USER_ID set - running offline")
	}

	// Deliver queued budget alerts. Dispatch mechanics stay outside the
	// ledger; here they are logged.
	if res.AMQP != nil {
		delivery := notify.NewLogNotifier(logger)
		go func() {
			err := res.AMQP.ConsumeAlerts(ctx, func(msg *amqp.AlertMessage) error {
				_, err := delivery.Schedule(ctx, msg.Notification)
				return err
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Alert consumer stopped", log.FieldError, err)
			}
		}()
	}

	logger.Info("Recurring materializer configured",
		"interval", cfg.MaterializeInterval,
		"db_path", cfg.DBPath,
		"remote_backend", cfg.RemoteBackend,
		"amqp_enabled", res.AMQP != nil)

	go func() {
		defer background.Done()
		runMaterializer(ctx, store, cfg.MaterializeInterval, stats, logger)
	}()

	cli.WaitForShutdown(ctx, done)
}

func runMaterializer(ctx context.Context, store *ledger.Store, interval time.Duration, stats *taskStats, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Running initial materialization...")
	materialize(ctx, store, time.Now(), logger)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			materialize(ctx, store, now, logger)
			logger.Info("Background tasks since start", stats.fields()...)
			logger.Debug("Next materialization", "next_check", now.Add(interval).Format("15:04:05"))
		}
	}
}

func materialize(ctx context.Context, store *ledger.Store, now time.Time, logger *log.Logger) {
	report, err := store.Materialize(ctx, now)
	if err != nil {
		logger.Error("Materialization failed", log.FieldOperation, log.OpMaterialize, log.FieldError, err)
	}
	logger.Info("Materialization complete",
		"definitions", report.Definitions,
		"created", len(report.Created),
		"skipped", report.Skipped)
}

// taskStats counts task results per operation and outcome.
type taskStats struct {
	mu     sync.Mutex
	counts map[string]int
}

func (s *taskStats) observe(r worker.Result) {
	key := r.Op + "_ok"
	if r.Err != nil {
		key = r.Op + "_failed"
	}
	s.mu.Lock()
	s.counts[key]++
	s.mu.Unlock()
}

func (s *taskStats) fields() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, 0, len(s.counts)*2)
	for k, v := range s.counts {
		out = append(out, k, v)
	}
	return out
}
