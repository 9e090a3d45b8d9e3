package events

import "github.com/google/uuid"

// Event names.
const (
	EventOnboardingCompleted = "onboarding.completed"
	EventNumberAssigned      = "onboarding.number_assigned"
	EventTestCallCompleted   = "onboarding.test_call_completed"
)

// OnboardingCompleted fires when a client finishes the full onboarding flow.
type OnboardingCompleted struct {
	BaseEvent
	ClientID uuid.UUID
}

func (OnboardingCompleted) EventName() string { return EventOnboardingCompleted }

// NumberAssigned fires when the pool allocator assigns a platform number.
type NumberAssigned struct {
	BaseEvent
	ClientID    uuid.UUID
	PhoneNumber string
}

func (NumberAssigned) EventName() string { return EventNumberAssigned }

// TestCallCompleted fires when the forwarding test call finishes.
type TestCallCompleted struct {
	BaseEvent
	ClientID uuid.UUID
	Missed   bool
}

func (TestCallCompleted) EventName() string { return EventTestCallCompleted }
