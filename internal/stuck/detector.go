package stuck

import (
	"context"
	"fmt"
	"sort"
	"time"

	"missedcall_backend/internal/alerts"
	"missedcall_backend/internal/billing"
	"missedcall_backend/internal/onboarding"
	"missedcall_backend/platform/config"
	"missedcall_backend/platform/logger"

	"github.com/google/uuid"
)

// CandidateStore is the persistence surface the detector needs. Satisfied
// by *Repository; faked in tests.
type CandidateStore interface {
	ListIncomplete(ctx context.Context) ([]Candidate, error)
	MarkStuckDetected(ctx context.Context, clientID uuid.UUID, at time.Time) error
	MarkPaymentGateAlerted(ctx context.Context, clientID uuid.UUID, at time.Time) error
}

// StuckClient is one detected client in the scan summary.
type StuckClient struct {
	ClientID     uuid.UUID
	BusinessName string
	State        onboarding.State
	StuckFor     time.Duration
	Severity     string
	Terminal     bool
}

// Summary is the result of one scan.
type Summary struct {
	GeneratedAt time.Time
	Total       int
	ByState     map[onboarding.State]int
	BySeverity  map[string]int
	Clients     []StuckClient
}

// Detector runs the periodic stuck-client scan.
type Detector struct {
	store         CandidateStore
	notifier      alerts.Notifier
	reAlertWindow time.Duration
	gateAfter     time.Duration
	log           *logger.Logger
	now           func() time.Time
}

func NewDetector(store CandidateStore, notifier alerts.Notifier, cfg config.OnboardingConfig, log *logger.Logger) *Detector {
	reAlert := cfg.GetStuckReAlertWindow()
	if reAlert <= 0 {
		reAlert = 6 * time.Hour
	}
	gateAfter := cfg.GetPaymentGateAlertAfter()
	if gateAfter <= 0 {
		gateAfter = 2 * time.Hour
	}
	return &Detector{
		store:         store,
		notifier:      notifier,
		reAlertWindow: reAlert,
		gateAfter:     gateAfter,
		log:           log,
		now:           time.Now,
	}
}

// Detect scans every incomplete onboarding, classifies the stuck ones,
// fires the alerts the suppression rules permit, and returns a summary
// sorted by urgency. Muted clients are counted but never alerted.
func (d *Detector) Detect(ctx context.Context) (Summary, error) {
	candidates, err := d.store.ListIncomplete(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list incomplete onboardings: %w", err)
	}

	now := d.now()
	summary := Summary{
		GeneratedAt: now,
		ByState:     map[onboarding.State]int{},
		BySeverity:  map[string]int{},
	}

	for _, cand := range candidates {
		threshold, ok := ThresholdFor(cand.State)
		if !ok {
			continue
		}

		elapsed := now.Sub(cand.LastActivityAt)
		if elapsed < threshold.After {
			continue
		}

		summary.Total++
		summary.ByState[cand.State]++
		summary.BySeverity[threshold.Severity]++
		summary.Clients = append(summary.Clients, StuckClient{
			ClientID:     cand.ClientID,
			BusinessName: cand.BusinessName,
			State:        cand.State,
			StuckFor:     elapsed,
			Severity:     threshold.Severity,
			Terminal:     threshold.Terminal,
		})

		if cand.Muted {
			continue
		}

		d.maybeAlertStuck(ctx, cand, threshold, elapsed, now)
		d.maybeEscalatePaymentGate(ctx, cand, elapsed, now)
	}

	sortByUrgency(summary.Clients)
	d.log.Info("stuck scan finished",
		"candidates", len(candidates), "stuck", summary.Total,
		"high", summary.BySeverity[alerts.SeverityHigh], "medium", summary.BySeverity[alerts.SeverityMedium])
	return summary, nil
}

// maybeAlertStuck fires the per-client stuck alert, rate-limited by the
// re-alert window. The window restarts on every fired alert, so a client
// stuck for a day produces a handful of alerts rather than one per scan.
func (d *Detector) maybeAlertStuck(ctx context.Context, cand Candidate, threshold Threshold, elapsed time.Duration, now time.Time) {
	if cand.StuckDetectedAt != nil && now.Sub(*cand.StuckDetectedAt) < d.reAlertWindow {
		return
	}

	title := "Client stuck in onboarding"
	if threshold.Terminal {
		title = "Client stuck at final onboarding step"
	}
	d.notifier.SendCriticalAlert(ctx, alerts.Payload{
		Type:       alerts.TypeStuckClient,
		Severity:   threshold.Severity,
		ResourceID: cand.ClientID.String(),
		Title:      title,
		Message: fmt.Sprintf("%s has been in %s for %s without progress.",
			cand.BusinessName, cand.State, elapsed.Round(time.Minute)),
		Metadata: map[string]any{
			"clientId":     cand.ClientID.String(),
			"state":        string(cand.State),
			"stuckMinutes": int(elapsed.Minutes()),
			"terminal":     threshold.Terminal,
		},
	})

	if err := d.store.MarkStuckDetected(ctx, cand.ClientID, now); err != nil {
		d.log.DatabaseError("stuck.MarkStuckDetected", err)
	}
}

// maybeEscalatePaymentGate fires the one-shot escalation for a client
// parked at the payment gate. Unlike the stuck alert this never re-fires
// on its own; only support tooling clears the flag after contacting the
// client.
func (d *Detector) maybeEscalatePaymentGate(ctx context.Context, cand Candidate, elapsed time.Duration, now time.Time) {
	if cand.State != onboarding.StateConfirmLive {
		return
	}
	if billing.IsActive(cand.BillingStatus) {
		return
	}
	if cand.PaymentGateAlertedAt != nil || elapsed < d.gateAfter {
		return
	}

	d.notifier.SendCriticalAlert(ctx, alerts.Payload{
		Type:       alerts.TypePaymentGateStuck,
		Severity:   alerts.SeverityHigh,
		ResourceID: cand.ClientID.String(),
		Title:      "Client blocked at payment gate",
		Message: fmt.Sprintf("%s confirmed go-live %s ago but billing status is still %q.",
			cand.BusinessName, elapsed.Round(time.Minute), cand.BillingStatus),
		Metadata: map[string]any{
			"clientId":      cand.ClientID.String(),
			"billingStatus": cand.BillingStatus,
			"stuckMinutes":  int(elapsed.Minutes()),
		},
	})

	if err := d.store.MarkPaymentGateAlerted(ctx, cand.ClientID, now); err != nil {
		d.log.DatabaseError("stuck.MarkPaymentGateAlerted", err)
	}
}

// sortByUrgency orders HIGH before MEDIUM before LOW, longest-stuck first
// within a severity.
func sortByUrgency(clients []StuckClient) {
	rank := map[string]int{
		alerts.SeverityHigh:   0,
		alerts.SeverityMedium: 1,
		alerts.SeverityLow:    2,
	}
	sort.SliceStable(clients, func(i, j int) bool {
		if rank[clients[i].Severity] != rank[clients[j].Severity] {
			return rank[clients[i].Severity] < rank[clients[j].Severity]
		}
		return clients[i].StuckFor > clients[j].StuckFor
	})
}
