// Package extraction wraps the LLM field-extraction service behind a
// strict, schema-validated contract. The core treats the model's output as
// untrusted: anything that does not parse into the tagged union below is
// handled as an ERROR action.
package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action tags the adapter's proposed outcome for one user message.
type Action string

const (
	ActionAccept   Action = "ACCEPT"
	ActionReject   Action = "REJECT"
	ActionComplete Action = "COMPLETE"
	ActionError    Action = "ERROR"
)

// Request carries the state-machine context the model needs.
type Request struct {
	State           string
	CollectedFields map[string]string
	UserInput       string
}

// Result is the adapter's validated output.
type Result struct {
	Action    Action
	Reply     string
	Extracted map[string]string
	NextState string
}

// rawResult is the wire shape before validation.
type rawResult struct {
	Action    string            `json:"action" validate:"required"`
	Reply     string            `json:"reply"`
	Extracted map[string]string `json:"extracted"`
	NextState string            `json:"nextState"`
}

// ErrorResult is the canonical result for any adapter failure.
func ErrorResult() Result {
	return Result{Action: ActionError}
}

// ParseResult decodes and validates a model response. Per-tag required
// fields are enforced here: ACCEPT needs a next state, ACCEPT and REJECT
// need a reply, COMPLETE needs a reply. Violations fail the parse.
func ParseResult(data []byte) (Result, error) {
	var raw rawResult
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&raw); err != nil {
		return Result{}, fmt.Errorf("decode extraction result: %w", err)
	}

	action := Action(strings.ToUpper(strings.TrimSpace(raw.Action)))
	switch action {
	case ActionAccept:
		if strings.TrimSpace(raw.NextState) == "" {
			return Result{}, fmt.Errorf("ACCEPT result missing nextState")
		}
		if strings.TrimSpace(raw.Reply) == "" {
			return Result{}, fmt.Errorf("ACCEPT result missing reply")
		}
	case ActionReject:
		if strings.TrimSpace(raw.Reply) == "" {
			return Result{}, fmt.Errorf("REJECT result missing reply")
		}
	case ActionComplete:
		if strings.TrimSpace(raw.Reply) == "" {
			return Result{}, fmt.Errorf("COMPLETE result missing reply")
		}
	case ActionError:
		// Nothing further required.
	default:
		return Result{}, fmt.Errorf("unknown extraction action %q", raw.Action)
	}

	return Result{
		Action:    action,
		Reply:     strings.TrimSpace(raw.Reply),
		Extracted: raw.Extracted,
		NextState: strings.TrimSpace(raw.NextState),
	}, nil
}
