// Package billing exposes a read-only view of a client's billing status.
// The billing records themselves are owned by an external subsystem; this
// core only consults them to gate paid functionality.
package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status values mirror the external billing subsystem.
const (
	StatusTrialPending = "trial-pending"
	StatusTrialActive  = "trial-active"
	StatusActive       = "active"
	StatusPastDue      = "past-due"
)

// Record is a client's billing snapshot.
type Record struct {
	ClientID      uuid.UUID
	Status        string
	PaymentSource *string
}

// Provider reads billing status. Satisfied by *Repository; faked in tests.
type Provider interface {
	GetStatus(ctx context.Context, clientID uuid.UUID) (Record, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetStatus returns the billing snapshot for a client. A client without a
// billing row is reported as trial-pending rather than an error; the gate
// treats that as not yet payable.
func (r *Repository) GetStatus(ctx context.Context, clientID uuid.UUID) (Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx,
		`SELECT client_id, status, payment_source
		 FROM client_billing
		 WHERE client_id = $1`,
		clientID,
	).Scan(&rec.ClientID, &rec.Status, &rec.PaymentSource)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{ClientID: clientID, Status: StatusTrialPending}, nil
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// IsActive reports whether the status permits paid functionality. Both a
// running trial and a paying subscription count.
func IsActive(status string) bool {
	return status == StatusTrialActive || status == StatusActive
}
