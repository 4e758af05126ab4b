package ids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func TestNewTenantIDIsMonotonic(t *testing.T) {
	prev := NewTenantID()
	for i := 0; i < 100; i++ {
		next := NewTenantID()
		if next <= prev {
			t.Fatalf("tenant ids not increasing: %s <= %s", next, prev)
		}
		if _, err := ulid.ParseStrict(next); err != nil {
			t.Fatalf("invalid ulid %q: %v", next, err)
		}
		prev = next
	}
}

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	if a == b {
		t.Fatalf("expected distinct request ids")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("invalid uuid %q: %v", a, err)
	}
}
