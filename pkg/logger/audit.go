package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType string
	Identity  string
	IPAddress string
	UserAgent string
	Success   bool
	Metadata  map[string]string
}

// AuditLogger provides audit logging for lockout decisions. Identities are
// masked before they reach the log stream.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs the outcome of a recorded authentication attempt
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_id", uuid.NewString()),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Identity != "" {
		attrs = append(attrs, slog.String("identity", SanitizedEmail(event.Identity)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogLockoutEvent logs lockout state transitions (triggered, cleared, expired)
func (al *AuditLogger) LogLockoutEvent(eventType, identity, ipAddress string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "lockout"),
		slog.String("event_id", uuid.NewString()),
		slog.String("event_type", eventType),
		slog.String("identity", SanitizedEmail(identity)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}

// LogSweep logs the outcome of one cleanup sweep
func (al *AuditLogger) LogSweep(lockoutsCleared, attemptsReset int) {
	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit",
		slog.String("audit_type", "sweep"),
		slog.String("event_id", uuid.NewString()),
		slog.String("event_type", "cleanup_sweep"),
		slog.Int("lockouts_cleared", lockoutsCleared),
		slog.Int("attempts_reset", attemptsReset),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}
