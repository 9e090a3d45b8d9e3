package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type schedulerConfigStub struct {
	redisURL string
}

func (s schedulerConfigStub) GetRedisURL() string                 { return s.redisURL }
func (s schedulerConfigStub) GetRedisTLSInsecure() bool           { return false }
func (s schedulerConfigStub) GetAsynqQueueName() string           { return "default" }
func (s schedulerConfigStub) GetAsynqConcurrency() int            { return 1 }
func (s schedulerConfigStub) GetStuckScanInterval() time.Duration { return time.Minute }
func (s schedulerConfigStub) IsSchedulerEnabled() bool            { return s.redisURL != "" }

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(schedulerConfigStub{}); err == nil {
		t.Fatal("expected error without a redis url")
	}
}

func TestEnqueueStuckScan(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(schedulerConfigStub{redisURL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = client.Close() }()

	payload := StuckScanPayload{RequestedAt: time.Now()}
	if err := client.EnqueueStuckScan(context.Background(), payload); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	// A second enqueue inside the uniqueness window is a quiet no-op.
	if err := client.EnqueueStuckScan(context.Background(), payload); err != nil {
		t.Fatalf("duplicate enqueue must not error: %v", err)
	}

	if len(srv.Keys()) == 0 {
		t.Fatal("expected the task to land in redis")
	}
}

func TestStuckScanPayloadRoundTrip(t *testing.T) {
	requested := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	task, err := NewStuckScanTask(StuckScanPayload{RequestedAt: requested})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Type() != TaskStuckScan {
		t.Fatalf("task type = %q", task.Type())
	}

	parsed, err := ParseStuckScanPayload(task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsed.RequestedAt.Equal(requested) {
		t.Fatalf("requestedAt = %v, want %v", parsed.RequestedAt, requested)
	}
}
