// Package audit records security-relevant events (registrations, logins, access
// decisions, bulk tenant writes) as structured log entries.
package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"auctiondesk.app/internal/access"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// Event names.
const (
	EventRegister     = "access.register"
	EventLogin        = "access.login"
	EventDecide       = "access.decide"
	EventTenantSave   = "tenant.save"
	EventTenantImport = "tenant.import"
	EventTenantReset  = "tenant.reset"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Logger writes audit entries through zap.
type Logger struct {
	log *zap.Logger
}

// New returns an audit logger. A nil base logger discards entries.
func New(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{log: base.Named("audit")}
}

// LogEvent writes an audit entry enriched with the request id and the authenticated
// principal. Callers must not pass secrets in fields.
func (l *Logger) LogEvent(ctx context.Context, event string, fields ...zap.Field) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	if l == nil {
		return nil
	}
	out := make([]zap.Field, 0, len(fields)+4)
	out = append(out, zap.String("type", "audit"), zap.String("event", event))
	if rid := RequestIDFromContext(ctx); rid != "" {
		out = append(out, zap.String("request_id", rid))
	}
	if p, ok := access.PrincipalFromContext(ctx); ok {
		out = append(out, zap.String("actor", p.Email), zap.String("actor_role", string(p.Role)))
	}
	out = append(out, fields...)
	l.log.Info(event, out...)
	return nil
}
