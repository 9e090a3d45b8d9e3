package events

import (
	"context"

	"missedcall_backend/platform/logger"
)

// RegisterLogging subscribes an observability handler for the onboarding
// lifecycle events. Nothing downstream depends on these; they exist so the
// funnel is visible in the logs without grepping SQL.
func RegisterLogging(bus Bus, log *logger.Logger) {
	bus.Subscribe(EventNumberAssigned, HandlerFunc(func(ctx context.Context, e Event) error {
		if ev, ok := e.(NumberAssigned); ok {
			log.Info("event: number assigned", "client_id", ev.ClientID.String(), "number", ev.PhoneNumber)
		}
		return nil
	}))

	bus.Subscribe(EventTestCallCompleted, HandlerFunc(func(ctx context.Context, e Event) error {
		if ev, ok := e.(TestCallCompleted); ok {
			log.Info("event: test call completed", "client_id", ev.ClientID.String(), "missed", ev.Missed)
		}
		return nil
	}))

	bus.Subscribe(EventOnboardingCompleted, HandlerFunc(func(ctx context.Context, e Event) error {
		if ev, ok := e.(OnboardingCompleted); ok {
			log.Info("event: onboarding completed", "client_id", ev.ClientID.String())
		}
		return nil
	}))
}
