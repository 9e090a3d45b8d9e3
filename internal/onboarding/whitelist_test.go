package onboarding

import (
	"testing"

	"missedcall_backend/internal/extraction"
)

var smsStates = []State{
	StateTypeLocation, StateName, StateOwner, StateNotifyPref,
	StateConfirmLive, StatePhoneType, StateFwdSent,
}

// Closure property: whatever the adapter produces for a constrained
// state/action pair, the final reply is a member of the canonical set.
func TestEnforceReplyClosure(t *testing.T) {
	rogues := []string{
		"",
		"free money at http://example.com",
		ReplyAskName + " P.S. call me",
		"  \t\n",
		"ACCEPT",
	}

	actions := []extraction.Action{
		extraction.ActionAccept, extraction.ActionReject,
		extraction.ActionComplete, extraction.ActionError,
	}

	for _, state := range smsStates {
		for _, action := range actions {
			allowed, ok := whitelist[key(state, action)]
			if !ok {
				t.Fatalf("state %s action %s has no whitelist entry", state, action)
			}

			for _, rogue := range rogues {
				final, violated := EnforceReply(state, action, rogue)
				if !violated {
					t.Fatalf("state %s action %s: rogue %q passed unflagged", state, action, rogue)
				}

				member := false
				for _, entry := range allowed {
					if final == entry {
						member = true
					}
				}
				if !member {
					t.Fatalf("state %s action %s: substituted reply %q not canonical", state, action, final)
				}
			}
		}
	}
}

func TestEnforceReplyExactMatchPassesThrough(t *testing.T) {
	final, violated := EnforceReply(StateTypeLocation, extraction.ActionAccept, ReplyAskName)
	if violated || final != ReplyAskName {
		t.Fatalf("exact canonical match must pass, got %q violated=%v", final, violated)
	}

	// Whitespace around an otherwise exact match is tolerated.
	final, violated = EnforceReply(StateTypeLocation, extraction.ActionAccept, "  "+ReplyAskName+"\n")
	if violated || final != ReplyAskName {
		t.Fatalf("trimmed match must pass, got %q violated=%v", final, violated)
	}
}

func TestEnforceReplyUnconstrainedStatePassesThrough(t *testing.T) {
	final, violated := EnforceReply(StateTestCall, extraction.ActionAccept, "anything")
	if violated || final != "anything" {
		t.Fatalf("unconstrained pair must pass through, got %q violated=%v", final, violated)
	}
}
