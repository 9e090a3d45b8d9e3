package onboarding

import (
	"context"
	"strings"

	"missedcall_backend/internal/billing"
	"missedcall_backend/internal/clients"
	"missedcall_backend/internal/events"
	"missedcall_backend/internal/extraction"
	"missedcall_backend/internal/numberpool"
	"missedcall_backend/platform/logger"
	"missedcall_backend/platform/phone"

	"github.com/google/uuid"
)

// StateStore is the persistence surface the engine needs. Satisfied by
// *Repository; faked in tests.
type StateStore interface {
	GetOrCreate(ctx context.Context, clientID uuid.UUID) (Record, error)
	UpdateLastMessageSid(ctx context.Context, clientID uuid.UUID, messageSid string) error
	ApplyTransition(ctx context.Context, p TransitionParams) (bool, error)
	AdvanceOnCall(ctx context.Context, clientID uuid.UUID, from, to State, setTestCall, setCompleted bool) (bool, error)
}

// Allocator assigns platform numbers. Satisfied by *numberpool.Service.
type Allocator interface {
	Allocate(ctx context.Context, clientID uuid.UUID) numberpool.Allocation
}

// ClientStore receives collected business fields once they are confirmed.
type ClientStore interface {
	UpdateBusinessFields(ctx context.Context, clientID uuid.UUID, businessName, businessType *string) error
}

// Engine drives the onboarding state machine. One Advance call processes
// one inbound owner SMS end to end: idempotency check, extraction, reply
// whitelisting, side-effect gating, and the guarded state write.
type Engine struct {
	states    StateStore
	adapter   extraction.Adapter
	allocator Allocator
	billing   billing.Provider
	clients   ClientStore
	bus       events.Bus
	log       *logger.Logger
}

func NewEngine(states StateStore, adapter extraction.Adapter, allocator Allocator, billingProvider billing.Provider, clientStore ClientStore, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{
		states:    states,
		adapter:   adapter,
		allocator: allocator,
		billing:   billingProvider,
		clients:   clientStore,
		bus:       bus,
		log:       log,
	}
}

// Advance processes one inbound SMS from a client's owner and returns the
// reply to send back, or "" for silence. It never returns an error: every
// failure mode maps onto a canonical reply (or silence) so the webhook can
// always acknowledge Twilio with 200.
func (e *Engine) Advance(ctx context.Context, client clients.Client, fromPhone, body, messageSid string) (reply string) {
	log := e.log.WithClientID(client.ID.String())

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in onboarding advance", "panic", r)
			reply = ReplyGenericError
		}
	}()

	if !phone.Same(fromPhone, client.OwnerPhone) {
		log.Warn("onboarding message from non-owner number ignored", "from", fromPhone)
		return ""
	}

	rec, err := e.states.GetOrCreate(ctx, client.ID)
	if err != nil {
		log.DatabaseError("onboarding.GetOrCreate", err)
		return ReplyGenericError
	}

	if messageSid != "" && messageSid == rec.LastMessageSid {
		log.Info("duplicate webhook delivery ignored", "message_sid", messageSid)
		return ""
	}
	if rec.CurrentState == StateComplete {
		return ""
	}

	// Past the forwarding-confirmed state progression is voice-driven; an
	// owner SMS here just gets reminded what the next step is.
	if rec.CurrentState == StateFwdConfirm || rec.CurrentState == StateTestCall {
		return e.holdState(ctx, client.ID, messageSid, ReplyAskTestCall, log)
	}

	result, err := e.adapter.Generate(ctx, extraction.Request{
		State:           string(rec.CurrentState),
		CollectedFields: rec.CollectedFields,
		UserInput:       body,
	})
	if err != nil {
		log.Warn("extraction failed", "error", err)
		result = extraction.ErrorResult()
	}

	switch result.Action {
	case extraction.ActionReject, extraction.ActionError:
		final := e.enforce(rec.CurrentState, result.Action, result.Reply, log)
		return e.holdState(ctx, client.ID, messageSid, final, log)

	case extraction.ActionComplete:
		return e.applyComplete(ctx, rec, result, messageSid, log)

	case extraction.ActionAccept:
		return e.applyAccept(ctx, client, rec, result, messageSid, log)

	default:
		log.Error("unhandled extraction action", "action", string(result.Action))
		return e.holdState(ctx, client.ID, messageSid, ReplyGenericError, log)
	}
}

// applyAccept validates and commits a forward transition proposed by the
// adapter, running the side-effect gates that guard specific edges.
func (e *Engine) applyAccept(ctx context.Context, client clients.Client, rec Record, result extraction.Result, messageSid string, log *logger.Logger) string {
	next := State(result.NextState)
	if !next.Known() || next.Index() != rec.CurrentState.Index()+1 {
		log.Error("adapter proposed invalid transition",
			"from", string(rec.CurrentState), "proposed", result.NextState)
		return e.holdState(ctx, client.ID, messageSid, ReplyGenericError, log)
	}

	fields := dropCollected(NormalizeFields(result.Extracted), rec.CollectedFields)
	params := TransitionParams{
		ClientID:    client.ID,
		From:        rec.CurrentState,
		To:          next,
		MergeFields: fields,
		MessageSid:  messageSid,
	}

	switch rec.CurrentState {
	case StateConfirmLive:
		// Payment gate. This is the only edge billing status guards.
		status, err := e.billing.GetStatus(ctx, client.ID)
		if err != nil {
			log.DatabaseError("billing.GetStatus", err)
			return e.holdState(ctx, client.ID, messageSid, ReplyGenericError, log)
		}
		if !billing.IsActive(status.Status) {
			log.Info("payment gate held transition", "billing_status", status.Status)
			return e.holdState(ctx, client.ID, messageSid, ReplyPaymentPrompt, log)
		}

		// Allocate before committing the transition so the client is never
		// past this edge without a number.
		alloc := e.allocator.Allocate(ctx, client.ID)
		switch alloc.Outcome {
		case numberpool.PoolEmpty:
			return e.holdState(ctx, client.ID, messageSid, ReplyPoolEmpty, log)
		case numberpool.Failed:
			return e.holdState(ctx, client.ID, messageSid, ReplyGenericError, log)
		}

	case StatePhoneType:
		pt, ok := fields[FieldPhoneType]
		if !ok {
			// Adapter accepted but supplied no usable phone type; re-ask
			// without moving.
			return e.holdState(ctx, client.ID, messageSid, ReplyAskPhoneType, log)
		}
		params.PhoneType = &pt
		if rec.AssignedNumber == nil || *rec.AssignedNumber == "" {
			return e.holdState(ctx, client.ID, messageSid, ReplyNumberSettling, log)
		}

	case StateFwdSent:
		if fields[FieldFwdConfirm] != "DONE" {
			return e.holdState(ctx, client.ID, messageSid, ReplyFwdInstructions, log)
		}
		params.SetForwarding = true
	}

	final := e.enforce(rec.CurrentState, extraction.ActionAccept, result.Reply, log)

	applied, err := e.states.ApplyTransition(ctx, params)
	if err != nil {
		log.DatabaseError("onboarding.ApplyTransition", err)
		return ReplyGenericError
	}
	if !applied {
		// A concurrent delivery already moved the state; that processing
		// owns the reply.
		log.Info("transition lost guard race", "from", string(rec.CurrentState), "to", string(next))
		return ""
	}

	log.StateTransition(client.ID.String(), string(rec.CurrentState), string(next), string(extraction.ActionAccept), messageSid)
	e.propagateBusinessFields(ctx, client.ID, fields, log)
	return final
}

// applyComplete commits an adapter-proposed jump straight to the terminal
// state. Rare in practice (owners who already had forwarding configured),
// but part of the adapter contract. The jump is subject to the same
// structural requirements as the step-by-step path: a client with no
// assigned number or unconfirmed forwarding stays put no matter what the
// adapter claims, so the terminal state always implies the evidence.
func (e *Engine) applyComplete(ctx context.Context, rec Record, result extraction.Result, messageSid string, log *logger.Logger) string {
	fields := dropCollected(NormalizeFields(result.Extracted), rec.CollectedFields)

	prospective := rec
	prospective.CurrentState = StateComplete
	prospective.CollectedFields = mergeFields(rec.CollectedFields, fields)
	setForwarding := fields[FieldFwdConfirm] == "DONE"
	if setForwarding {
		prospective.ForwardingEnabled = true
	}

	if missing := prospective.MissingRequirements(); len(missing) > 0 {
		log.Error("completion refused, evidence missing",
			"from", string(rec.CurrentState), "missing", strings.Join(missing, ", "))
		return e.holdState(ctx, rec.ClientID, messageSid, ReplyGenericError, log)
	}

	final := e.enforce(rec.CurrentState, extraction.ActionComplete, result.Reply, log)

	applied, err := e.states.ApplyTransition(ctx, TransitionParams{
		ClientID:      rec.ClientID,
		From:          rec.CurrentState,
		To:            StateComplete,
		MergeFields:   fields,
		MessageSid:    messageSid,
		SetForwarding: setForwarding,
		SetCompleted:  true,
	})
	if err != nil {
		log.DatabaseError("onboarding.ApplyTransition", err)
		return ReplyGenericError
	}
	if !applied {
		return ""
	}

	log.StateTransition(rec.ClientID.String(), string(rec.CurrentState), string(StateComplete), string(extraction.ActionComplete), messageSid)
	e.publishCompleted(ctx, rec.ClientID)
	return final
}

// OnTestCallStarted handles the inbound-call webhook for a client waiting
// on the forwarding test. Repeated deliveries are no-ops once the state
// has moved.
func (e *Engine) OnTestCallStarted(ctx context.Context, clientID uuid.UUID) error {
	applied, err := e.states.AdvanceOnCall(ctx, clientID, StateFwdConfirm, StateTestCall, true, false)
	if err != nil {
		e.log.DatabaseError("onboarding.AdvanceOnCall", err)
		return err
	}
	if applied {
		e.log.StateTransition(clientID.String(), string(StateFwdConfirm), string(StateTestCall), "CALL_STARTED", "")
	}
	return nil
}

// OnTestCallCompleted handles the call-status webhook. Only a missed call
// proves forwarding works end to end; an answered call leaves the client
// waiting for another test.
func (e *Engine) OnTestCallCompleted(ctx context.Context, clientID uuid.UUID, missed bool) error {
	if e.bus != nil {
		e.bus.Publish(ctx, events.TestCallCompleted{
			BaseEvent: events.NewBaseEvent(),
			ClientID:  clientID,
			Missed:    missed,
		})
	}
	if !missed {
		e.log.Info("test call answered, forwarding not verified", "client_id", clientID.String())
		return nil
	}

	applied, err := e.states.AdvanceOnCall(ctx, clientID, StateTestCall, StateComplete, false, true)
	if err != nil {
		e.log.DatabaseError("onboarding.AdvanceOnCall", err)
		return err
	}
	if applied {
		e.log.StateTransition(clientID.String(), string(StateTestCall), string(StateComplete), "TEST_CALL_MISSED", "")
		e.publishCompleted(ctx, clientID)
	}
	return nil
}

// dropCollected removes keys that already hold a value. Collected fields
// are write-once: a later extraction proposing a different value for an
// answered question is discarded rather than clobbering the original.
func dropCollected(fields, collected map[string]string) map[string]string {
	for k := range fields {
		if collected[k] != "" {
			delete(fields, k)
		}
	}
	return fields
}

func mergeFields(collected, fields map[string]string) map[string]string {
	merged := make(map[string]string, len(collected)+len(fields))
	for k, v := range collected {
		merged[k] = v
	}
	for k, v := range fields {
		if merged[k] == "" {
			merged[k] = v
		}
	}
	return merged
}

// holdState persists only the idempotency token and returns the reply; the
// state itself does not move.
func (e *Engine) holdState(ctx context.Context, clientID uuid.UUID, messageSid, reply string, log *logger.Logger) string {
	if messageSid != "" {
		if err := e.states.UpdateLastMessageSid(ctx, clientID, messageSid); err != nil {
			log.DatabaseError("onboarding.UpdateLastMessageSid", err)
		}
	}
	return reply
}

func (e *Engine) enforce(state State, action extraction.Action, candidate string, log *logger.Logger) string {
	final, violated := EnforceReply(state, action, candidate)
	if violated {
		log.WhitelistViolation(string(state), string(action), candidate)
	}
	return final
}

func (e *Engine) propagateBusinessFields(ctx context.Context, clientID uuid.UUID, fields map[string]string, log *logger.Logger) {
	if e.clients == nil {
		return
	}
	var name, btype *string
	if v, ok := fields[FieldBusinessName]; ok && v != "" {
		name = &v
	}
	if v, ok := fields[FieldBusinessType]; ok && v != "" {
		btype = &v
	}
	if name == nil && btype == nil {
		return
	}
	if err := e.clients.UpdateBusinessFields(ctx, clientID, name, btype); err != nil {
		log.DatabaseError("clients.UpdateBusinessFields", err)
	}
}

func (e *Engine) publishCompleted(ctx context.Context, clientID uuid.UUID) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, events.OnboardingCompleted{
		BaseEvent: events.NewBaseEvent(),
		ClientID:  clientID,
	})
}
