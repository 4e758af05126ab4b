package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewTenantID returns a lexicographically sortable identifier used as a tenant namespace.
// It only contains Crockford base32 characters, so it is safe inside storage keys.
func NewTenantID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewRequestID returns a random identifier for correlating a request across log lines.
func NewRequestID() string {
	return uuid.NewString()
}
