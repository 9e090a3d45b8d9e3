package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"missedcall_backend/internal/alerts"
	"missedcall_backend/internal/scheduler"
	"missedcall_backend/internal/stuck"
	"missedcall_backend/internal/twilio"
	"missedcall_backend/platform/config"
	"missedcall_backend/platform/db"
	"missedcall_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if !cfg.IsSchedulerEnabled() {
		log.Warn("scheduler disabled; it runs only in production with REDIS_URL configured",
			"env", cfg.Env, "redis_configured", cfg.RedisURL != "")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	twilioClient := twilio.NewClient(cfg, log)

	alertRepo := alerts.NewRepository(pool)
	var channels []alerts.Channel
	if twilioClient != nil {
		if ch := alerts.NewSMSChannel(cfg, twilioClient); ch != nil {
			channels = append(channels, ch)
		}
	}
	if ch := alerts.NewEmailChannel(cfg); ch != nil {
		channels = append(channels, ch)
	}
	notifier := alerts.NewDispatcher(cfg, alertRepo, channels, log)

	detector := stuck.NewDetector(stuck.NewRepository(pool), notifier, cfg, log)

	worker, err := scheduler.NewWorker(cfg, detector, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		worker.Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		return runScanLoop(groupCtx, cfg, client, log)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("scheduler stopped", "error", err)
	}
}

// runScanLoop enqueues a stuck-client scan on a fixed interval. The first
// scan fires immediately so a restarted scheduler does not leave a gap.
func runScanLoop(ctx context.Context, cfg config.SchedulerConfig, client scheduler.ScanScheduler, log *logger.Logger) error {
	interval := cfg.GetStuckScanInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	enqueue := func() {
		payload := scheduler.StuckScanPayload{RequestedAt: time.Now()}
		if err := client.EnqueueStuckScan(ctx, payload); err != nil {
			log.Error("failed to enqueue stuck scan", "error", err)
		}
	}

	enqueue()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			enqueue()
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
