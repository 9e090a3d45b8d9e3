// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// ClientIDKey is the context key for the client (business) ID
	ClientIDKey contextKey = "client_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and client_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if clientID, ok := ctx.Value(ClientIDKey).(string); ok && clientID != "" {
		newLogger = newLogger.WithClientID(clientID)
	}

	return newLogger
}

// WithClientID returns a logger with the client ID attached.
func (l *Logger) WithClientID(clientID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("client_id", clientID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// StateTransition logs an onboarding state transition.
func (l *Logger) StateTransition(clientID, from, to, action, messageSid string) {
	l.Info("onboarding_transition",
		slog.String("client_id", clientID),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("action", action),
		slog.String("message_sid", messageSid),
	)
}

// WhitelistViolation logs a discarded adapter reply. The violation is
// observational only; the canonical reply has already been substituted.
func (l *Logger) WhitelistViolation(state, action, candidate string) {
	l.Warn("reply_whitelist_violation",
		slog.String("state", state),
		slog.String("action", action),
		slog.String("candidate", candidate),
	)
}

// AlertEvent logs an alert dispatch attempt.
func (l *Logger) AlertEvent(alertType, alertKey, severity string, delivered, suppressed bool) {
	l.Info("alert_event",
		slog.String("type", alertType),
		slog.String("key", alertKey),
		slog.String("severity", severity),
		slog.Bool("delivered", delivered),
		slog.Bool("suppressed", suppressed),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
