package stuck

import (
	"context"
	"time"

	"missedcall_backend/internal/onboarding"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Candidate is one incomplete onboarding with the context the detector
// needs to classify it.
type Candidate struct {
	ClientID             uuid.UUID
	BusinessName         string
	State                onboarding.State
	LastActivityAt       time.Time
	StuckDetectedAt      *time.Time
	PaymentGateAlertedAt *time.Time
	Muted                bool
	BillingStatus        string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListIncomplete returns every client whose onboarding has not reached the
// terminal state, joined with the mute flag and billing status the
// detector filters on.
func (r *Repository) ListIncomplete(ctx context.Context) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.client_id, c.business_name, o.current_state, o.updated_at,
		        o.stuck_detected_at, o.payment_gate_alerted_at,
		        COALESCE(s.muted, false), COALESCE(b.status, 'trial-pending')
		 FROM onboarding_states o
		 JOIN clients c ON c.id = o.client_id
		 LEFT JOIN client_settings s ON s.client_id = o.client_id
		 LEFT JOIN client_billing b ON b.client_id = o.client_id
		 WHERE o.current_state <> $1`,
		onboarding.StateComplete,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ClientID, &c.BusinessName, &c.State, &c.LastActivityAt,
			&c.StuckDetectedAt, &c.PaymentGateAlertedAt, &c.Muted, &c.BillingStatus); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkStuckDetected stamps the start of a re-alert window.
func (r *Repository) MarkStuckDetected(ctx context.Context, clientID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE onboarding_states SET stuck_detected_at = $2 WHERE client_id = $1`,
		clientID, at,
	)
	return err
}

// MarkPaymentGateAlerted stamps the one-shot payment escalation. Only
// support tooling ever clears it.
func (r *Repository) MarkPaymentGateAlerted(ctx context.Context, clientID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE onboarding_states SET payment_gate_alerted_at = $2 WHERE client_id = $1`,
		clientID, at,
	)
	return err
}
