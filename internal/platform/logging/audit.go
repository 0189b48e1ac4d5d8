package logging

import (
	"context"

	"go.uber.org/zap"
)

// Audit result values.
const (
	AuditSuccess = "success"
	AuditFailure = "failure"
)

// AuditEvent describes one auditable action.
type AuditEvent struct {
	Action   string // e.g. "search", "select_image"
	Actor    string // session or user performing the action
	Resource string // e.g. "profiles"
	Result   string // AuditSuccess or AuditFailure
	Details  map[string]any
}

// LogAuditEvent writes a structured audit entry with the request-aware logger.
func LogAuditEvent(ctx context.Context, ev AuditEvent) {
	fields := []zap.Field{
		zap.String("audit.action", ev.Action),
		zap.String("audit.actor", ev.Actor),
		zap.String("audit.resource", ev.Resource),
		zap.String("audit.result", ev.Result),
	}
	if len(ev.Details) > 0 {
		fields = append(fields, zap.Any("audit.details", ev.Details))
	}
	LoggerFromContext(ctx).Info("audit event", fields...)
}
