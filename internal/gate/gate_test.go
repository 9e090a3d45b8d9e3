package gate

import (
	"testing"

	"missedcall_backend/internal/clients"
)

func completeProgress() Progress {
	return Progress{Complete: true}
}

func incompleteProgress() Progress {
	return Progress{
		State:    "S8_FWD_CONFIRM",
		Complete: false,
		Missing:  []string{"confirmed forwarding"},
	}
}

func liveSettings() clients.Settings {
	return clients.Settings{AutoReplyEnabled: true}
}

func TestCanProcessCustomerMessageAllowsCompleteClient(t *testing.T) {
	d := CanProcessCustomerMessage(completeProgress(), liveSettings())
	if !d.Allowed() {
		t.Fatalf("complete live client must be allowed, got %+v", d)
	}
}

func TestCanProcessCustomerMessageSoftBlocksIncomplete(t *testing.T) {
	d := CanProcessCustomerMessage(incompleteProgress(), liveSettings())

	if d.Mode != SoftBlock {
		t.Fatalf("incomplete onboarding must soft-block, got %+v", d)
	}
	if d.Fallback == "" {
		t.Fatal("soft block must carry a fallback message")
	}
	if len(d.Reasons) == 0 {
		t.Fatal("soft block must explain itself")
	}
}

func TestCanProcessCustomerMessageSoftBlocksMidFlow(t *testing.T) {
	p := Progress{State: "S4_NOTIFY_PREF", Missing: []string{"notification preference", "assigned number", "confirmed forwarding"}}

	d := CanProcessCustomerMessage(p, liveSettings())

	if d.Mode != SoftBlock {
		t.Fatalf("mid-flow client must soft-block, got %+v", d)
	}
	if d.Reasons[0] != "onboarding in state S4_NOTIFY_PREF" {
		t.Fatalf("soft block must name the state first, got %v", d.Reasons)
	}
}

func TestCanProcessCustomerMessageHardBlocks(t *testing.T) {
	paused := liveSettings()
	paused.OutboundPaused = true
	if d := CanProcessCustomerMessage(completeProgress(), paused); d.Mode != HardBlock {
		t.Fatalf("outbound pause must hard-block, got %+v", d)
	}

	disabled := clients.Settings{}
	if d := CanProcessCustomerMessage(completeProgress(), disabled); d.Mode != HardBlock {
		t.Fatalf("auto-reply off must hard-block, got %+v", d)
	}
}

// The kill switch wins even when onboarding is also incomplete: a hard
// block must never degrade into a soft block with a fallback send.
func TestKillSwitchBeatsSoftBlock(t *testing.T) {
	settings := liveSettings()
	settings.OutboundPaused = true

	d := CanProcessCustomerMessage(incompleteProgress(), settings)
	if d.Mode != HardBlock || d.Fallback != "" {
		t.Fatalf("expected hard block with no fallback, got %+v", d)
	}
}

func TestCanSendSMS(t *testing.T) {
	if d := CanSendSMS(clients.Settings{}); !d.Allowed() {
		t.Fatalf("default settings must allow sending, got %+v", d)
	}
	if d := CanSendSMS(clients.Settings{OutboundPaused: true}); d.Mode != HardBlock {
		t.Fatalf("paused outbound must hard-block sending, got %+v", d)
	}
}
