package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"missedcall_backend/platform/config"
	"missedcall_backend/platform/logger"

	"github.com/google/uuid"
)

// Severity levels, highest first.
const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// Well-known alert types.
const (
	TypePoolExhausted     = "pool_exhausted"
	TypeStuckClient       = "stuck_client"
	TypePaymentGateStuck  = "payment_gate_stuck"
	TypeExtractionFailing = "extraction_failing"
)

// Payload describes one alert condition.
type Payload struct {
	Type       string
	Severity   string
	ResourceID string // optional; system-wide conditions leave it empty
	Title      string
	Message    string
	Metadata   map[string]any
}

// Key returns the deduplication key: "type:resourceId", or the bare type
// for system-wide conditions.
func (p Payload) Key() string {
	if p.ResourceID == "" {
		return p.Type
	}
	return p.Type + ":" + p.ResourceID
}

// Result reports what the dispatcher did with a payload.
type Result struct {
	Success    bool
	Suppressed bool
	AlertID    *uuid.UUID
}

// Notifier is the narrow interface other modules depend on.
type Notifier interface {
	SendCriticalAlert(ctx context.Context, payload Payload) Result
}

// Channel delivers one alert to an operator-facing medium.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, payload Payload) error
}

// AlertLog is the persistence surface the dispatcher needs.
type AlertLog interface {
	Insert(ctx context.Context, entry LogEntry) (uuid.UUID, error)
	GetLatestByKey(ctx context.Context, alertKey string) (LogEntry, error)
}

// Dispatcher implements Notifier with deduplication and escalation rules:
// a kill switch beats everything, only allow-listed severities deliver, an
// unacknowledged prior alert for the same key suppresses new deliveries,
// and an acknowledged one suppresses until the cooldown elapses.
type Dispatcher struct {
	log        *logger.Logger
	repo       AlertLog
	channels   []Channel
	disabled   bool
	severities map[string]bool
	cooldown   time.Duration
	now        func() time.Time
}

func NewDispatcher(cfg config.AlertConfig, repo AlertLog, channels []Channel, log *logger.Logger) *Dispatcher {
	severities := make(map[string]bool, len(cfg.GetAlertSeverities()))
	for _, s := range cfg.GetAlertSeverities() {
		severities[strings.ToUpper(strings.TrimSpace(s))] = true
	}

	cooldown := cfg.GetAlertCooldown()
	if cooldown <= 0 {
		cooldown = 24 * time.Hour
	}

	return &Dispatcher{
		log:        log,
		repo:       repo,
		channels:   channels,
		disabled:   cfg.GetAlertsDisabled(),
		severities: severities,
		cooldown:   cooldown,
		now:        time.Now,
	}
}

// SendCriticalAlert applies the suppression rules, then delivers through
// every configured channel and persists a log entry. Failures are recorded
// and swallowed; this method never panics and never returns an error.
func (d *Dispatcher) SendCriticalAlert(ctx context.Context, payload Payload) Result {
	if d.disabled {
		return Result{Suppressed: true}
	}

	severity := strings.ToUpper(strings.TrimSpace(payload.Severity))
	if !d.severities[severity] {
		return Result{Suppressed: true}
	}

	key := payload.Key()

	latest, err := d.repo.GetLatestByKey(ctx, key)
	switch {
	case err == nil:
		if latest.AcknowledgedAt == nil {
			// An operator has not seen the previous one yet.
			d.log.AlertEvent(payload.Type, key, severity, false, true)
			return Result{Suppressed: true}
		}
		if d.now().Sub(*latest.AcknowledgedAt) < d.cooldown {
			d.log.AlertEvent(payload.Type, key, severity, false, true)
			return Result{Suppressed: true}
		}
	case errors.Is(err, ErrNotFound):
		// First occurrence for this key.
	default:
		// A broken lookup must not block delivery of a critical alert.
		d.log.DatabaseError("alerts.GetLatestByKey", err)
	}

	delivered := false
	for _, ch := range d.channels {
		if err := ch.Deliver(ctx, payload); err != nil {
			d.log.Error("alert delivery failed", "channel", ch.Name(), "key", key, "error", err)
			continue
		}
		delivered = true
	}

	metadata, _ := json.Marshal(payload.Metadata)
	entry := LogEntry{
		AlertType:   payload.Type,
		AlertKey:    key,
		Severity:    severity,
		Title:       payload.Title,
		Message:     payload.Message,
		Metadata:    metadata,
		DeliveredAt: d.now(),
	}

	id, err := d.repo.Insert(ctx, entry)
	if err != nil {
		d.log.DatabaseError("alerts.Insert", err)
		d.log.AlertEvent(payload.Type, key, severity, delivered, false)
		return Result{Success: delivered}
	}

	d.log.AlertEvent(payload.Type, key, severity, delivered, false)
	return Result{Success: delivered, AlertID: &id}
}
