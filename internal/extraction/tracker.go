package extraction

import (
	"context"
	"sync"

	"missedcall_backend/internal/alerts"
)

// FailureTracker tallies consecutive extraction failures across requests.
// A single failed request only affects that one message; a run of failures
// means the adapter itself is down or misconfigured, which is an operator
// problem. Crossing the threshold fires one alert; the counter re-arms on
// the next success.
type FailureTracker struct {
	mu        sync.Mutex
	failures  int
	alerted   bool
	threshold int
	notifier  alerts.Notifier
}

func NewFailureTracker(threshold int, notifier alerts.Notifier) *FailureTracker {
	if threshold < 1 {
		threshold = 5
	}
	return &FailureTracker{threshold: threshold, notifier: notifier}
}

// RecordFailure increments the consecutive-failure count and escalates at
// the threshold.
func (t *FailureTracker) RecordFailure(ctx context.Context, cause error) {
	if t == nil {
		return
	}

	t.mu.Lock()
	t.failures++
	shouldAlert := t.failures >= t.threshold && !t.alerted
	if shouldAlert {
		t.alerted = true
	}
	count := t.failures
	t.mu.Unlock()

	if !shouldAlert || t.notifier == nil {
		return
	}

	// The failure that tripped the threshold usually carries an expired
	// deadline (a timed-out extraction call). The alert must outlive it.
	t.notifier.SendCriticalAlert(context.WithoutCancel(ctx), alerts.Payload{
		Type:     alerts.TypeExtractionFailing,
		Severity: alerts.SeverityHigh,
		Title:    "Field extraction service failing repeatedly",
		Message:  "Consecutive extraction failures crossed the alert threshold. Onboarding replies are degraded to retry prompts.",
		Metadata: map[string]any{
			"consecutiveFailures": count,
			"lastError":           cause.Error(),
		},
	})
}

// RecordSuccess resets the streak and re-arms the alert.
func (t *FailureTracker) RecordSuccess() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.failures = 0
	t.alerted = false
	t.mu.Unlock()
}

// ConsecutiveFailures returns the current streak. Used by tests and the
// health endpoint.
func (t *FailureTracker) ConsecutiveFailures() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}
