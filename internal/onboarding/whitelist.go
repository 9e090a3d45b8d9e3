package onboarding

import (
	"strings"

	"missedcall_backend/internal/extraction"
)

// Canonical reply texts. Everything an owner can receive on the SMS path
// is one of these strings; the extraction adapter only ever picks between
// them, it can never author new text.
const (
	ReplyAskBusinessType = `Welcome! To get set up, tell me your business type and the area you serve (e.g. "plumber in Leeds").`
	ReplyAskName         = "Great! What's the name of your business?"
	ReplyAskOwnerPhone   = "Thanks! What's the best mobile number for the owner?"
	ReplyAskNotifyPref   = "How would you like to be notified about missed calls? Reply SMS or EMAIL."
	ReplyAskConfirmLive  = "Almost there. Reply YES to confirm you're ready to go live."
	ReplyAskPhoneType    = "You're confirmed! What type of phone does the business use? Reply IPHONE, ANDROID or LANDLINE."
	ReplyFwdInstructions = "Thanks! We've sent call-forwarding instructions for your phone. Reply DONE once forwarding is switched on."
	ReplyAskTestCall     = "Brilliant - forwarding confirmed. Now give your business a missed call from another phone to test it."
	ReplyOnboardingDone  = "That's it - you're live! We'll text your customers back whenever you miss a call."

	ReplyPaymentPrompt   = "You're nearly there - the last step is activating your subscription with the payment link we sent you. Then reply YES again."
	ReplyPoolEmpty       = "We're just provisioning your dedicated number. We'll text you as soon as it's ready - no action needed."
	ReplyNumberSettling  = "We're still setting up your number. Please try again in a few minutes."
	ReplyGenericError    = "Sorry, something went wrong on our side. Please try again in a moment."
)

// whitelist maps state|action to the allowed canonical replies. The first
// entry is the substitute when the adapter's candidate does not match.
// A missing key means "no constraint" so new states can roll out before
// their vocabulary is pinned down.
var whitelist = map[string][]string{
	key(StateTypeLocation, extraction.ActionAccept): {ReplyAskName},
	key(StateTypeLocation, extraction.ActionReject): {ReplyAskBusinessType},
	key(StateName, extraction.ActionAccept):         {ReplyAskOwnerPhone},
	key(StateName, extraction.ActionReject):         {ReplyAskName},
	key(StateOwner, extraction.ActionAccept):        {ReplyAskNotifyPref},
	key(StateOwner, extraction.ActionReject):        {ReplyAskOwnerPhone},
	key(StateNotifyPref, extraction.ActionAccept):   {ReplyAskConfirmLive},
	key(StateNotifyPref, extraction.ActionReject):   {ReplyAskNotifyPref},
	key(StateConfirmLive, extraction.ActionAccept):  {ReplyAskPhoneType},
	key(StateConfirmLive, extraction.ActionReject):  {ReplyAskConfirmLive},
	key(StatePhoneType, extraction.ActionAccept):    {ReplyFwdInstructions},
	key(StatePhoneType, extraction.ActionReject):    {ReplyAskPhoneType},
	key(StateFwdSent, extraction.ActionAccept):      {ReplyAskTestCall},
	key(StateFwdSent, extraction.ActionReject):      {ReplyFwdInstructions},

	key(StateTypeLocation, extraction.ActionError): {ReplyGenericError},
	key(StateName, extraction.ActionError):         {ReplyGenericError},
	key(StateOwner, extraction.ActionError):        {ReplyGenericError},
	key(StateNotifyPref, extraction.ActionError):   {ReplyGenericError},
	key(StateConfirmLive, extraction.ActionError):  {ReplyGenericError},
	key(StatePhoneType, extraction.ActionError):    {ReplyGenericError},
	key(StateFwdSent, extraction.ActionError):      {ReplyGenericError},

	key(StateTypeLocation, extraction.ActionComplete): {ReplyOnboardingDone},
	key(StateName, extraction.ActionComplete):         {ReplyOnboardingDone},
	key(StateOwner, extraction.ActionComplete):        {ReplyOnboardingDone},
	key(StateNotifyPref, extraction.ActionComplete):   {ReplyOnboardingDone},
	key(StateConfirmLive, extraction.ActionComplete):  {ReplyOnboardingDone},
	key(StatePhoneType, extraction.ActionComplete):    {ReplyOnboardingDone},
	key(StateFwdSent, extraction.ActionComplete):      {ReplyOnboardingDone},
}

func key(state State, action extraction.Action) string {
	return string(state) + "|" + string(action)
}

// EnforceReply validates the adapter's candidate reply against the
// canonical set for the state and action. An exact trimmed match passes
// through; anything else is replaced with the first canonical entry and
// reported as a violation. The violation is observational: callers log
// it, correctness does not depend on it.
func EnforceReply(state State, action extraction.Action, candidate string) (final string, violated bool) {
	allowed, ok := whitelist[key(state, action)]
	if !ok || len(allowed) == 0 {
		return candidate, false
	}

	trimmed := strings.TrimSpace(candidate)
	for _, entry := range allowed {
		if trimmed == entry {
			return entry, false
		}
	}
	return allowed[0], true
}
