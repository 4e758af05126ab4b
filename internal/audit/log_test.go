package audit

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"auctiondesk.app/internal/access"
)

func TestLogEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := New(zap.New(core))

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = access.ContextWithPrincipal(ctx, access.Principal{Email: "admin@example.com", Role: access.RoleAdmin})

	if err := logger.LogEvent(ctx, EventDecide, zap.String("target", "a@x")); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	got := entries[0].ContextMap()
	if got["type"] != "audit" {
		t.Fatalf("unexpected type: %v", got["type"])
	}
	if got["event"] != EventDecide {
		t.Fatalf("unexpected event: %v", got["event"])
	}
	if got["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", got["request_id"])
	}
	if got["actor"] != "admin@example.com" || got["actor_role"] != "admin" {
		t.Fatalf("unexpected actor: %v %v", got["actor"], got["actor_role"])
	}
	if got["target"] != "a@x" {
		t.Fatalf("fields missing or incorrect: %v", got)
	}
	if entries[0].LoggerName != "audit" {
		t.Fatalf("unexpected logger name %q", entries[0].LoggerName)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := New(nil).LogEvent(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty event")
	}
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	ctx := WithRequestID(context.Background(), "  ")
	if RequestIDFromContext(ctx) != "" {
		t.Fatal("blank request id must not be stored")
	}
}
