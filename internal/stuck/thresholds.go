// Package stuck finds clients whose onboarding has stalled and escalates
// them to the operator. It only observes and alerts; it never moves state.
package stuck

import (
	"time"

	"missedcall_backend/internal/alerts"
	"missedcall_backend/internal/onboarding"
)

// Threshold defines how long a client may sit in a state before counting
// as stuck, and how urgent that is. Terminal marks the states where the
// client has done everything except the final proof, which is where
// drop-off hurts most.
type Threshold struct {
	After    time.Duration
	Severity string
	Terminal bool
}

// thresholds is the static per-state table. Early states tolerate slow
// typers; the payment and forwarding states escalate harder because the
// owner has already invested effort; the test-call state gets a full day
// because "grab another phone" often waits for the evening.
var thresholds = map[onboarding.State]Threshold{
	onboarding.StateTypeLocation: {After: 30 * time.Minute, Severity: alerts.SeverityMedium},
	onboarding.StateName:         {After: 30 * time.Minute, Severity: alerts.SeverityMedium},
	onboarding.StateOwner:        {After: 30 * time.Minute, Severity: alerts.SeverityMedium},
	onboarding.StateNotifyPref:   {After: 60 * time.Minute, Severity: alerts.SeverityMedium},
	onboarding.StateConfirmLive:  {After: 2 * time.Hour, Severity: alerts.SeverityHigh},
	onboarding.StatePhoneType:    {After: 60 * time.Minute, Severity: alerts.SeverityMedium},
	onboarding.StateFwdSent:      {After: 2 * time.Hour, Severity: alerts.SeverityHigh, Terminal: true},
	onboarding.StateFwdConfirm:   {After: 2 * time.Hour, Severity: alerts.SeverityHigh, Terminal: true},
	onboarding.StateTestCall:     {After: 24 * time.Hour, Severity: alerts.SeverityHigh, Terminal: true},
}

// ThresholdFor returns the threshold for a state. Unknown states get no
// threshold and are never reported.
func ThresholdFor(state onboarding.State) (Threshold, bool) {
	t, ok := thresholds[state]
	return t, ok
}
