// Package gate centralizes the go/no-go decisions for customer-facing
// automation. Every outbound path asks the gate first; the gate itself
// never sends anything.
package gate

import (
	"missedcall_backend/internal/clients"
)

// Mode distinguishes how a denial should be handled downstream.
type Mode string

const (
	// Allow means the action may proceed.
	Allow Mode = "ALLOW"
	// SoftBlock means the automation is withheld but the customer still
	// deserves an acknowledgement; Decision.Fallback carries it.
	SoftBlock Mode = "SOFT_BLOCK"
	// HardBlock means nothing may be sent at all.
	HardBlock Mode = "HARD_BLOCK"
)

// Decision is the gate's verdict plus the reasons behind it, for logging.
type Decision struct {
	Mode     Mode
	Reasons  []string
	Fallback string
}

func (d Decision) Allowed() bool { return d.Mode == Allow }

const fallbackMessage = "Thanks for reaching out! We'll get back to you as soon as possible."

// Progress is the gate's view of a client's setup evidence. Callers build
// it from whatever record they hold; the gate itself stays decoupled from
// how that evidence is stored. State is informational and may be empty.
type Progress struct {
	State    string
	Complete bool
	Missing  []string
}

// CanProcessCustomerMessage decides whether the missed-call automation may
// respond to a customer. Incomplete onboarding soft-blocks with a generic
// acknowledgement; kill switches hard-block.
func CanProcessCustomerMessage(p Progress, settings clients.Settings) Decision {
	if settings.OutboundPaused {
		return Decision{Mode: HardBlock, Reasons: []string{"outbound paused"}}
	}
	if !settings.AutoReplyEnabled {
		return Decision{Mode: HardBlock, Reasons: []string{"auto-reply disabled"}}
	}

	if !p.Complete {
		reasons := p.Missing
		if p.State != "" {
			reasons = append([]string{"onboarding in state " + p.State}, reasons...)
		}
		return Decision{Mode: SoftBlock, Reasons: reasons, Fallback: fallbackMessage}
	}

	return Decision{Mode: Allow}
}

// CanSendSMS is the final outbound check, applied immediately before any
// SMS leaves the system regardless of which feature produced it.
func CanSendSMS(settings clients.Settings) Decision {
	if settings.OutboundPaused {
		return Decision{Mode: HardBlock, Reasons: []string{"outbound paused"}}
	}
	return Decision{Mode: Allow}
}
