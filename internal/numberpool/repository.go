// Package numberpool assigns one phone number from a shared inventory to
// exactly one client.
package numberpool

import (
	"context"
	"errors"
	"time"

	"missedcall_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPoolEmpty is returned when no AVAILABLE entry exists. Typed as a
// temporarily-unavailable condition for the HTTP layer.
var ErrPoolEmpty = apperr.Unavailable("number pool empty")

// Entry statuses.
const (
	StatusAvailable = "AVAILABLE"
	StatusAssigned  = "ASSIGNED"
)

// Entry is one number in the shared pool.
type Entry struct {
	ID          uuid.UUID
	PhoneNumber string
	Status      string
	ClientID    *uuid.UUID
	AssignedAt  *time.Time
	CreatedAt   time.Time
}

// Stats summarizes pool inventory for the admin surface.
type Stats struct {
	Available int
	Assigned  int
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetAssigned returns the pool entry already assigned to a client, if any.
func (r *Repository) GetAssigned(ctx context.Context, clientID uuid.UUID) (Entry, bool, error) {
	var e Entry
	err := r.pool.QueryRow(ctx,
		`SELECT id, phone_number, status, client_id, assigned_at, created_at
		 FROM twilio_number_pool
		 WHERE client_id = $1 AND status = 'ASSIGNED'`,
		clientID,
	).Scan(&e.ID, &e.PhoneNumber, &e.Status, &e.ClientID, &e.AssignedAt, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// ClaimAvailable assigns the oldest AVAILABLE entry to the client and
// writes the number onto the client record, all inside one transaction.
// The locking read skips rows locked by concurrent claims, so parallel
// allocations for different clients neither block nor double-assign.
func (r *Repository) ClaimAvailable(ctx context.Context, clientID uuid.UUID) (Entry, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var e Entry
	err = tx.QueryRow(ctx, `WITH cte AS (
		SELECT id
		FROM twilio_number_pool
		WHERE status = 'AVAILABLE'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE twilio_number_pool p
	SET status = 'ASSIGNED', client_id = $1, assigned_at = now()
	FROM cte
	WHERE p.id = cte.id
	RETURNING p.id, p.phone_number, p.status, p.client_id, p.assigned_at, p.created_at`,
		clientID,
	).Scan(&e.ID, &e.PhoneNumber, &e.Status, &e.ClientID, &e.AssignedAt, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrPoolEmpty
	}
	if err != nil {
		return Entry{}, err
	}

	// Same transaction: a crash cannot leave a claimed entry without the
	// client record knowing its number.
	if _, err := tx.Exec(ctx,
		`UPDATE clients SET twilio_number = $2, updated_at = now() WHERE id = $1`,
		clientID, e.PhoneNumber,
	); err != nil {
		return Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Release returns a client's entry to the pool and clears the client
// record. This is the explicit external release step; the allocator never
// reassigns on its own.
func (r *Repository) Release(ctx context.Context, clientID uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE twilio_number_pool
		 SET status = 'AVAILABLE', client_id = NULL, assigned_at = NULL
		 WHERE client_id = $1 AND status = 'ASSIGNED'`,
		clientID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE clients SET twilio_number = NULL, updated_at = now() WHERE id = $1`,
		clientID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetStats counts pool inventory by status.
func (r *Repository) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE status = 'AVAILABLE'),
		   COUNT(*) FILTER (WHERE status = 'ASSIGNED')
		 FROM twilio_number_pool`,
	).Scan(&s.Available, &s.Assigned)
	if err != nil {
		return Stats{}, err
	}
	return s, nil
}
