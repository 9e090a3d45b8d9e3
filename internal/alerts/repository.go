// Package alerts delivers, deduplicates, and escalates operator
// notifications. Alerting must never crash the system it monitors: the
// dispatcher swallows delivery failures and returns a result instead of
// an error.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"missedcall_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an alert log entry does not exist or was
// already acknowledged.
var ErrNotFound = apperr.NotFound("alert not found or already acknowledged")

// LogEntry is one row of the append-only alert log. Only the
// acknowledgment fields are ever updated after insert.
type LogEntry struct {
	ID             uuid.UUID
	AlertType      string
	AlertKey       string
	Severity       string
	Title          string
	Message        string
	Metadata       json.RawMessage
	DeliveredAt    time.Time
	AcknowledgedAt *time.Time
	AcknowledgedBy *uuid.UUID
	Resolution     *string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records a delivered alert.
func (r *Repository) Insert(ctx context.Context, entry LogEntry) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO alert_log (alert_type, alert_key, severity, title, message, metadata, delivered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		entry.AlertType, entry.AlertKey, entry.Severity, entry.Title, entry.Message, entry.Metadata, entry.DeliveredAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// GetLatestByKey returns the most recent log entry for a dedup key.
func (r *Repository) GetLatestByKey(ctx context.Context, alertKey string) (LogEntry, error) {
	var e LogEntry
	err := r.pool.QueryRow(ctx,
		`SELECT id, alert_type, alert_key, severity, title, message, metadata,
		        delivered_at, acknowledged_at, acknowledged_by, resolution
		 FROM alert_log
		 WHERE alert_key = $1
		 ORDER BY delivered_at DESC
		 LIMIT 1`,
		alertKey,
	).Scan(&e.ID, &e.AlertType, &e.AlertKey, &e.Severity, &e.Title, &e.Message, &e.Metadata,
		&e.DeliveredAt, &e.AcknowledgedAt, &e.AcknowledgedBy, &e.Resolution)
	if errors.Is(err, pgx.ErrNoRows) {
		return LogEntry{}, ErrNotFound
	}
	if err != nil {
		return LogEntry{}, err
	}
	return e, nil
}

// Acknowledge sets the acknowledgment fields on an entry. It is the only
// mutation the log permits.
func (r *Repository) Acknowledge(ctx context.Context, id uuid.UUID, operatorID uuid.UUID, resolution string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE alert_log
		 SET acknowledged_at = now(), acknowledged_by = $2, resolution = $3
		 WHERE id = $1 AND acknowledged_at IS NULL`,
		id, operatorID, nullIfEmpty(resolution),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns recent alert log entries, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, alert_type, alert_key, severity, title, message, metadata,
		        delivered_at, acknowledged_at, acknowledged_by, resolution
		 FROM alert_log
		 ORDER BY delivered_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.AlertType, &e.AlertKey, &e.Severity, &e.Title, &e.Message, &e.Metadata,
			&e.DeliveredAt, &e.AcknowledgedAt, &e.AcknowledgedBy, &e.Resolution); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
