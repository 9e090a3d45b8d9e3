package numberpool

import (
	"context"
	"errors"

	"missedcall_backend/internal/alerts"
	"missedcall_backend/internal/events"
	"missedcall_backend/platform/logger"

	"github.com/google/uuid"
)

// Outcome is the explicit result of an allocation attempt. The state
// machine switches over it exhaustively; "already assigned" is a named
// outcome rather than a nullable-field side effect.
type Outcome int

const (
	// Allocated means a fresh pool entry was claimed for this client.
	Allocated Outcome = iota
	// AlreadyAssigned means the client held a number before this call.
	AlreadyAssigned
	// PoolEmpty means no AVAILABLE entry exists.
	PoolEmpty
	// Failed means a transient (usually transactional) error occurred.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Allocated:
		return "ALLOCATED"
	case AlreadyAssigned:
		return "ALREADY_ASSIGNED"
	case PoolEmpty:
		return "POOL_EMPTY"
	default:
		return "FAILED"
	}
}

// Allocation is the result returned to callers.
type Allocation struct {
	Outcome     Outcome
	PhoneNumber string
}

// PoolRepository is the persistence surface the service needs.
type PoolRepository interface {
	GetAssigned(ctx context.Context, clientID uuid.UUID) (Entry, bool, error)
	ClaimAvailable(ctx context.Context, clientID uuid.UUID) (Entry, error)
}

// Service is the allocator. Idempotent per client: duplicate webhook
// deliveries short-circuit on the existing assignment before any locking
// read happens, so at most one row is ever claimed per client.
type Service struct {
	repo     PoolRepository
	notifier alerts.Notifier
	bus      events.Bus
	log      *logger.Logger
}

func NewService(repo PoolRepository, notifier alerts.Notifier, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, bus: bus, log: log}
}

// Allocate assigns a number to the client, or reports why it could not.
func (s *Service) Allocate(ctx context.Context, clientID uuid.UUID) Allocation {
	existing, found, err := s.repo.GetAssigned(ctx, clientID)
	if err != nil {
		s.log.DatabaseError("numberpool.GetAssigned", err)
		return Allocation{Outcome: Failed}
	}
	if found {
		return Allocation{Outcome: AlreadyAssigned, PhoneNumber: existing.PhoneNumber}
	}

	entry, err := s.repo.ClaimAvailable(ctx, clientID)
	if errors.Is(err, ErrPoolEmpty) {
		s.log.Warn("number pool exhausted", "client_id", clientID.String())
		s.notifier.SendCriticalAlert(ctx, alerts.Payload{
			Type:     alerts.TypePoolExhausted,
			Severity: alerts.SeverityHigh,
			Title:    "Twilio number pool exhausted",
			Message:  "A client could not be assigned a number because the pool has no AVAILABLE entries. Provision more numbers.",
			Metadata: map[string]any{"clientId": clientID.String()},
		})
		return Allocation{Outcome: PoolEmpty}
	}
	if err != nil {
		s.log.DatabaseError("numberpool.ClaimAvailable", err)
		return Allocation{Outcome: Failed}
	}

	s.log.Info("number assigned", "client_id", clientID.String(), "number", entry.PhoneNumber)
	if s.bus != nil {
		s.bus.Publish(ctx, events.NumberAssigned{
			BaseEvent:   events.NewBaseEvent(),
			ClientID:    clientID,
			PhoneNumber: entry.PhoneNumber,
		})
	}

	return Allocation{Outcome: Allocated, PhoneNumber: entry.PhoneNumber}
}
