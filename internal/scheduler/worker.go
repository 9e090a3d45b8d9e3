package scheduler

import (
	"context"
	"fmt"

	"missedcall_backend/internal/stuck"
	"missedcall_backend/platform/config"
	"missedcall_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ScanRunner runs one stuck-client scan. Satisfied by *stuck.Detector.
type ScanRunner interface {
	Detect(ctx context.Context) (stuck.Summary, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	detector ScanRunner
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, detector ScanRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		detector: detector,
		log:      log,
	}

	mux.HandleFunc(TaskStuckScan, w.handleStuckScan)

	return w, nil
}

func (w *Worker) handleStuckScan(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseStuckScanPayload(task)
	if err != nil {
		return err
	}

	summary, err := w.detector.Detect(ctx)
	if err != nil {
		return err
	}

	w.log.Info("stuck scan task done",
		"requested_at", payload.RequestedAt,
		"stuck_total", summary.Total,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
