// Package clients provides persistence for client (business) records and
// their per-client settings.
package clients

import (
	"context"
	"errors"
	"time"

	"missedcall_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a client does not exist. Typed so the HTTP
// layer maps it to a 404 instead of a generic bad request.
var ErrNotFound = apperr.NotFound("client not found")

// Client is a business on the platform.
type Client struct {
	ID           uuid.UUID
	BusinessName string
	OwnerPhone   string
	TwilioNumber *string
	BusinessType *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Settings holds per-client behavior toggles. OutboundPaused is the
// outbound kill switch; it is independent of onboarding completeness.
type Settings struct {
	ClientID         uuid.UUID
	AutoReplyEnabled bool
	OutboundPaused   bool
	Muted            bool
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a client by primary key.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx,
		`SELECT id, business_name, owner_phone, twilio_number, business_type, created_at, updated_at
		 FROM clients
		 WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.BusinessName, &c.OwnerPhone, &c.TwilioNumber, &c.BusinessType, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

// GetByTwilioNumber resolves the client that owns an assigned platform
// number. Used by the message router to map inbound traffic to a client.
func (r *Repository) GetByTwilioNumber(ctx context.Context, number string) (Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx,
		`SELECT id, business_name, owner_phone, twilio_number, business_type, created_at, updated_at
		 FROM clients
		 WHERE twilio_number = $1`,
		number,
	).Scan(&c.ID, &c.BusinessName, &c.OwnerPhone, &c.TwilioNumber, &c.BusinessType, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

// GetByOwnerPhone resolves a client by the registered owner phone (E.164).
// The onboarding SMS path addresses clients this way before a platform
// number exists.
func (r *Repository) GetByOwnerPhone(ctx context.Context, ownerPhone string) (Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx,
		`SELECT id, business_name, owner_phone, twilio_number, business_type, created_at, updated_at
		 FROM clients
		 WHERE owner_phone = $1`,
		ownerPhone,
	).Scan(&c.ID, &c.BusinessName, &c.OwnerPhone, &c.TwilioNumber, &c.BusinessType, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

// GetSettings fetches the client's settings row. A missing row falls back
// to zero-value settings with the client ID set, so callers can treat
// "never configured" as "everything off".
func (r *Repository) GetSettings(ctx context.Context, clientID uuid.UUID) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx,
		`SELECT client_id, auto_reply_enabled, outbound_paused, muted
		 FROM client_settings
		 WHERE client_id = $1`,
		clientID,
	).Scan(&s.ClientID, &s.AutoReplyEnabled, &s.OutboundPaused, &s.Muted)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{ClientID: clientID}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}

// UpdateBusinessFields writes onboarding-collected business fields onto the
// client record.
func (r *Repository) UpdateBusinessFields(ctx context.Context, clientID uuid.UUID, businessName, businessType *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE clients
		 SET business_name = COALESCE($2, business_name),
		     business_type = COALESCE($3, business_type),
		     updated_at = now()
		 WHERE id = $1`,
		clientID, businessName, businessType,
	)
	return err
}
