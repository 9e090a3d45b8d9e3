package stuck

import (
	"context"
	"testing"
	"time"

	"missedcall_backend/internal/alerts"
	"missedcall_backend/internal/billing"
	"missedcall_backend/internal/onboarding"
	"missedcall_backend/platform/logger"

	"github.com/google/uuid"
)

type onboardingConfigStub struct {
	reAlert   time.Duration
	gateAfter time.Duration
}

func (s onboardingConfigStub) GetStuckReAlertWindow() time.Duration    { return s.reAlert }
func (s onboardingConfigStub) GetPaymentGateAlertAfter() time.Duration { return s.gateAfter }

type fakeCandidateStore struct {
	candidates  []Candidate
	stuckMarked []uuid.UUID
	gateMarked  []uuid.UUID
}

func (f *fakeCandidateStore) ListIncomplete(ctx context.Context) ([]Candidate, error) {
	return f.candidates, nil
}

func (f *fakeCandidateStore) MarkStuckDetected(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.stuckMarked = append(f.stuckMarked, id)
	return nil
}

func (f *fakeCandidateStore) MarkPaymentGateAlerted(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.gateMarked = append(f.gateMarked, id)
	return nil
}

type fakeNotifier struct {
	payloads []alerts.Payload
}

func (f *fakeNotifier) SendCriticalAlert(ctx context.Context, p alerts.Payload) alerts.Result {
	f.payloads = append(f.payloads, p)
	return alerts.Result{Success: true}
}

var scanTime = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func newDetector(store *fakeCandidateStore, notifier *fakeNotifier) *Detector {
	d := NewDetector(store, notifier, onboardingConfigStub{reAlert: 6 * time.Hour, gateAfter: 2 * time.Hour}, logger.New("development"))
	d.now = func() time.Time { return scanTime }
	return d
}

func candidate(state onboarding.State, stuckFor time.Duration) Candidate {
	return Candidate{
		ClientID:       uuid.New(),
		BusinessName:   "Bob's Plumbing",
		State:          state,
		LastActivityAt: scanTime.Add(-stuckFor),
		BillingStatus:  billing.StatusTrialActive,
	}
}

func TestDetectSkipsBelowThreshold(t *testing.T) {
	store := &fakeCandidateStore{candidates: []Candidate{
		candidate(onboarding.StateName, 10*time.Minute),
	}}
	notifier := &fakeNotifier{}

	summary, err := newDetector(store, notifier).Detect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 0 || len(notifier.payloads) != 0 {
		t.Fatalf("fresh activity must not count as stuck: %+v", summary)
	}
}

func TestDetectAlertsAndStampsWindow(t *testing.T) {
	cand := candidate(onboarding.StateName, 45*time.Minute)
	store := &fakeCandidateStore{candidates: []Candidate{cand}}
	notifier := &fakeNotifier{}

	summary, err := newDetector(store, notifier).Detect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Total != 1 {
		t.Fatalf("total = %d, want 1", summary.Total)
	}
	if len(notifier.payloads) != 1 || notifier.payloads[0].Type != alerts.TypeStuckClient {
		t.Fatalf("expected one stuck alert, got %v", notifier.payloads)
	}
	if notifier.payloads[0].Severity != alerts.SeverityMedium {
		t.Fatalf("early-state severity = %s, want MEDIUM", notifier.payloads[0].Severity)
	}
	if len(store.stuckMarked) != 1 || store.stuckMarked[0] != cand.ClientID {
		t.Fatal("detector must stamp stuckDetectedAt after alerting")
	}
}

func TestDetectReAlertWindowSuppresses(t *testing.T) {
	recent := scanTime.Add(-1 * time.Hour)
	cand := candidate(onboarding.StateName, 3*time.Hour)
	cand.StuckDetectedAt = &recent
	store := &fakeCandidateStore{candidates: []Candidate{cand}}
	notifier := &fakeNotifier{}

	summary, _ := newDetector(store, notifier).Detect(context.Background())

	if summary.Total != 1 {
		t.Fatal("suppressed client still counts in the summary")
	}
	if len(notifier.payloads) != 0 {
		t.Fatal("inside the re-alert window no alert may fire")
	}

	// Window elapsed: the same client alerts again.
	old := scanTime.Add(-7 * time.Hour)
	cand.StuckDetectedAt = &old
	store.candidates = []Candidate{cand}
	notifier.payloads = nil

	_, _ = newDetector(store, notifier).Detect(context.Background())
	if len(notifier.payloads) != 1 {
		t.Fatal("after the window the alert must fire again")
	}
}

func TestDetectMutedClientCountsButNeverAlerts(t *testing.T) {
	cand := candidate(onboarding.StateConfirmLive, 5*time.Hour)
	cand.Muted = true
	cand.BillingStatus = billing.StatusTrialPending
	store := &fakeCandidateStore{candidates: []Candidate{cand}}
	notifier := &fakeNotifier{}

	summary, _ := newDetector(store, notifier).Detect(context.Background())

	if summary.Total != 1 {
		t.Fatal("muted clients still count")
	}
	if len(notifier.payloads) != 0 || len(store.gateMarked) != 0 {
		t.Fatal("muted clients never alert or escalate")
	}
}

func TestDetectPaymentGateEscalationIsOneShot(t *testing.T) {
	cand := candidate(onboarding.StateConfirmLive, 3*time.Hour)
	cand.BillingStatus = billing.StatusTrialPending
	store := &fakeCandidateStore{candidates: []Candidate{cand}}
	notifier := &fakeNotifier{}

	_, _ = newDetector(store, notifier).Detect(context.Background())

	var gateAlerts int
	for _, p := range notifier.payloads {
		if p.Type == alerts.TypePaymentGateStuck {
			gateAlerts++
			if p.Severity != alerts.SeverityHigh {
				t.Fatalf("gate escalation severity = %s, want HIGH", p.Severity)
			}
		}
	}
	if gateAlerts != 1 {
		t.Fatalf("gate alerts = %d, want 1", gateAlerts)
	}
	if len(store.gateMarked) != 1 {
		t.Fatal("escalation must stamp paymentGateAlertedAt")
	}

	// Flag set: never again, even hours later.
	cand.PaymentGateAlertedAt = &scanTime
	old := scanTime.Add(-10 * time.Hour)
	cand.StuckDetectedAt = &old
	cand.LastActivityAt = scanTime.Add(-20 * time.Hour)
	store.candidates = []Candidate{cand}
	notifier.payloads = nil
	store.gateMarked = nil

	_, _ = newDetector(store, notifier).Detect(context.Background())
	for _, p := range notifier.payloads {
		if p.Type == alerts.TypePaymentGateStuck {
			t.Fatal("gate escalation must be one-shot")
		}
	}
}

func TestDetectActiveBillingNeverEscalatesGate(t *testing.T) {
	cand := candidate(onboarding.StateConfirmLive, 5*time.Hour)
	store := &fakeCandidateStore{candidates: []Candidate{cand}}
	notifier := &fakeNotifier{}

	_, _ = newDetector(store, notifier).Detect(context.Background())
	for _, p := range notifier.payloads {
		if p.Type == alerts.TypePaymentGateStuck {
			t.Fatal("active billing must not trigger the gate escalation")
		}
	}
}

func TestDetectSortsBySeverityThenDuration(t *testing.T) {
	store := &fakeCandidateStore{candidates: []Candidate{
		candidate(onboarding.StateName, 2*time.Hour),       // MEDIUM
		candidate(onboarding.StateTestCall, 30*time.Hour),  // HIGH, longest
		candidate(onboarding.StateFwdConfirm, 4*time.Hour), // HIGH
		candidate(onboarding.StateOwner, 10*time.Hour),     // MEDIUM, longest medium
	}}
	notifier := &fakeNotifier{}

	summary, _ := newDetector(store, notifier).Detect(context.Background())

	if len(summary.Clients) != 4 {
		t.Fatalf("clients = %d, want 4", len(summary.Clients))
	}
	order := []onboarding.State{
		onboarding.StateTestCall, onboarding.StateFwdConfirm,
		onboarding.StateOwner, onboarding.StateName,
	}
	for i, want := range order {
		if summary.Clients[i].State != want {
			t.Fatalf("position %d = %s, want %s", i, summary.Clients[i].State, want)
		}
	}
}
