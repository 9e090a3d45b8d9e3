package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"missedcall_backend/internal/alerts"
	"missedcall_backend/internal/billing"
	"missedcall_backend/internal/clients"
	"missedcall_backend/internal/events"
	"missedcall_backend/internal/extraction"
	"missedcall_backend/internal/http/router"
	"missedcall_backend/internal/numberpool"
	"missedcall_backend/internal/onboarding"
	"missedcall_backend/internal/stuck"
	"missedcall_backend/internal/twilio"
	"missedcall_backend/migrations"
	"missedcall_backend/platform/config"
	"missedcall_backend/platform/db"
	"missedcall_backend/platform/logger"
	"missedcall_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	events.RegisterLogging(eventBus, log)

	val := validator.New()

	twilioClient := twilio.NewClient(cfg, log)
	if twilioClient == nil {
		log.Warn("Twilio not configured; outbound SMS disabled")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

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

	tracker := extraction.NewFailureTracker(cfg.GetExtractionFailureAlertThreshold(), notifier)
	adapter, err := extraction.NewClient(ctx, cfg, tracker, log)
	if err != nil {
		log.Error("failed to initialize extraction client", "error", err)
		panic("failed to initialize extraction client: " + err.Error())
	}
	if adapter == nil {
		log.Warn("extraction not configured; onboarding replies degrade to retry prompts")
	}

	clientRepo := clients.New(pool)
	billingRepo := billing.New(pool)
	poolRepo := numberpool.NewRepository(pool)
	allocator := numberpool.NewService(poolRepo, notifier, eventBus, log)

	stateRepo := onboarding.NewRepository(pool)
	engine := onboarding.NewEngine(stateRepo, adapter, allocator, billingRepo, clientRepo, eventBus, log)

	stuckRepo := stuck.NewRepository(pool)
	detector := stuck.NewDetector(stuckRepo, notifier, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	engineRouter := router.New(router.Deps{
		Config:     cfg,
		Logger:     log,
		Pool:       pool,
		Webhooks:   onboarding.NewHandler(engine, clientRepo, stateRepo, twilioClient, log),
		Alerts:     alerts.NewHandler(alertRepo, val),
		NumberPool: numberpool.NewHandler(poolRepo, log),
		Stuck:      stuck.NewHandler(detector),
		Extraction: tracker,
	})

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engineRouter.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
