// Package onboarding owns the guided setup flow a business owner completes
// over SMS and voice before any automation activates for their number.
package onboarding

import (
	"time"

	"github.com/google/uuid"
)

// State is one step of the onboarding flow. Progression is strictly
// forward; REJECT and ERROR outcomes leave the state untouched.
type State string

const (
	StateTypeLocation State = "S1_TYPE_LOCATION"
	StateName         State = "S2_NAME"
	StateOwner        State = "S3_OWNER"
	StateNotifyPref   State = "S4_NOTIFY_PREF"
	StateConfirmLive  State = "S5_CONFIRM_LIVE"
	StatePhoneType    State = "S6_PHONE_TYPE"
	StateFwdSent      State = "S7_FWD_SENT"
	StateFwdConfirm   State = "S8_FWD_CONFIRM"
	StateTestCall     State = "S9_TEST_CALL"
	StateComplete     State = "COMPLETE"
)

// stateOrder gives each state its position in the flow. Transition
// validation rejects anything that would move the index backwards.
var stateOrder = map[State]int{
	StateTypeLocation: 1,
	StateName:         2,
	StateOwner:        3,
	StateNotifyPref:   4,
	StateConfirmLive:  5,
	StatePhoneType:    6,
	StateFwdSent:      7,
	StateFwdConfirm:   8,
	StateTestCall:     9,
	StateComplete:     10,
}

// Known reports whether s is a recognized state.
func (s State) Known() bool {
	_, ok := stateOrder[s]
	return ok
}

// Index returns the state's position, or 0 for unknown states.
func (s State) Index() int {
	return stateOrder[s]
}

// Collected-field keys. The extraction adapter proposes values for these;
// the server re-asserts every value that gates later logic.
const (
	FieldBusinessType = "businessType"
	FieldLocation     = "location"
	FieldBusinessName = "businessName"
	FieldOwnerPhone   = "ownerPhone"
	FieldNotifyPref   = "notifyPref"
	FieldConfirmLive  = "confirmLive"
	FieldPhoneType    = "phoneType"
	FieldFwdConfirm   = "forwardingConfirmed"
)

// Phone types accepted for the forwarding instructions.
const (
	PhoneTypeIphone   = "IPHONE"
	PhoneTypeAndroid  = "ANDROID"
	PhoneTypeLandline = "LANDLINE"
)

// Record is one client's onboarding progress (1:1 with the client).
// AssignedNumber and OwnerPhone are denormalized from the client row by
// the repository so completeness can be derived from one load.
type Record struct {
	ClientID             uuid.UUID
	CurrentState         State
	CollectedFields      map[string]string
	LastMessageSid       string
	PhoneType            *string
	ForwardingEnabled    bool
	TestCallDetected     bool
	StuckDetectedAt      *time.Time
	PaymentGateAlertedAt *time.Time
	CompletedAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time

	OwnerPhone     string
	AssignedNumber *string
}

// MissingRequirements lists the structural requirements not yet satisfied.
// Completeness is derived from this evidence, never stored as its own
// flag, so the flag cannot drift from the facts backing it.
func (r *Record) MissingRequirements() []string {
	var missing []string
	if r.CollectedFields[FieldBusinessName] == "" {
		missing = append(missing, "business name")
	}
	if r.CollectedFields[FieldOwnerPhone] == "" {
		missing = append(missing, "owner phone")
	}
	if r.CollectedFields[FieldNotifyPref] == "" {
		missing = append(missing, "notification preference")
	}
	if r.AssignedNumber == nil || *r.AssignedNumber == "" {
		missing = append(missing, "assigned number")
	}
	if !r.ForwardingEnabled {
		missing = append(missing, "confirmed forwarding")
	}
	return missing
}

// IsComplete reports derived completeness.
func (r *Record) IsComplete() bool {
	return r.CurrentState == StateComplete && len(r.MissingRequirements()) == 0
}
