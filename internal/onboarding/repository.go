package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"missedcall_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no onboarding record exists for a client.
var ErrNotFound = apperr.NotFound("onboarding record not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `o.client_id, o.current_state, o.collected_fields, o.last_message_sid,
	o.phone_type, o.forwarding_enabled, o.test_call_detected,
	o.stuck_detected_at, o.payment_gate_alerted_at, o.completed_at,
	o.created_at, o.updated_at, c.owner_phone, c.twilio_number`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	var fields []byte
	err := row.Scan(&r.ClientID, &r.CurrentState, &fields, &r.LastMessageSid,
		&r.PhoneType, &r.ForwardingEnabled, &r.TestCallDetected,
		&r.StuckDetectedAt, &r.PaymentGateAlertedAt, &r.CompletedAt,
		&r.CreatedAt, &r.UpdatedAt, &r.OwnerPhone, &r.AssignedNumber)
	if err != nil {
		return Record{}, err
	}

	r.CollectedFields = map[string]string{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &r.CollectedFields); err != nil {
			return Record{}, fmt.Errorf("decode collected fields: %w", err)
		}
	}
	return r, nil
}

// GetOrCreate loads a client's onboarding record, creating it at the first
// state on first contact. Creation is lazy: the row appears on the first
// inbound onboarding-path message, not at signup.
func (r *Repository) GetOrCreate(ctx context.Context, clientID uuid.UUID) (Record, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO onboarding_states (client_id, current_state, collected_fields)
		 VALUES ($1, $2, '{}'::jsonb)
		 ON CONFLICT (client_id) DO NOTHING`,
		clientID, StateTypeLocation,
	)
	if err != nil {
		return Record{}, err
	}

	return r.Get(ctx, clientID)
}

// Get loads a client's onboarding record.
func (r *Repository) Get(ctx context.Context, clientID uuid.UUID) (Record, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+`
		 FROM onboarding_states o
		 JOIN clients c ON c.id = o.client_id
		 WHERE o.client_id = $1`,
		clientID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// UpdateLastMessageSid persists only the idempotency token. Used for
// REJECT/ERROR outcomes and vetoed transitions, where the state must not
// move but a retried delivery of the same message must become a no-op.
func (r *Repository) UpdateLastMessageSid(ctx context.Context, clientID uuid.UUID, messageSid string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE onboarding_states
		 SET last_message_sid = $2, updated_at = now()
		 WHERE client_id = $1`,
		clientID, messageSid,
	)
	return err
}

// TransitionParams describes one full SMS-path transition.
type TransitionParams struct {
	ClientID      uuid.UUID
	From          State
	To            State
	MergeFields   map[string]string
	MessageSid    string
	PhoneType     *string
	SetForwarding bool
	SetCompleted  bool
}

// ApplyTransition commits a transition as a single guarded update: state,
// merged fields, and the message sid move together or not at all. The
// current-state guard makes concurrent duplicate transitions lose cleanly.
// Returns false when the guard did not match.
//
// The field merge keeps existing keys: a collected answer is written once
// and a later extraction repeating the key cannot overwrite it.
func (r *Repository) ApplyTransition(ctx context.Context, p TransitionParams) (bool, error) {
	merge := p.MergeFields
	if merge == nil {
		merge = map[string]string{}
	}
	fields, err := json.Marshal(merge)
	if err != nil {
		return false, fmt.Errorf("encode merge fields: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE onboarding_states
		 SET current_state = $3,
		     collected_fields = $4::jsonb || collected_fields,
		     last_message_sid = $5,
		     phone_type = COALESCE($6, phone_type),
		     forwarding_enabled = forwarding_enabled OR $7,
		     completed_at = CASE WHEN $8 THEN now() ELSE completed_at END,
		     updated_at = now()
		 WHERE client_id = $1 AND current_state = $2`,
		p.ClientID, p.From, p.To, fields, p.MessageSid, p.PhoneType, p.SetForwarding, p.SetCompleted,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AdvanceOnCall moves a client between the voice-driven states. Idempotent
// on (client, expected-state): a repeated webhook with the same expectation
// simply matches zero rows.
func (r *Repository) AdvanceOnCall(ctx context.Context, clientID uuid.UUID, from, to State, setTestCall, setCompleted bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE onboarding_states
		 SET current_state = $3,
		     test_call_detected = test_call_detected OR $4,
		     completed_at = CASE WHEN $5 THEN now() ELSE completed_at END,
		     updated_at = now()
		 WHERE client_id = $1 AND current_state = $2`,
		clientID, from, to, setTestCall, setCompleted,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
