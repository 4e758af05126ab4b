package docstore

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Drivers understood by Open.
const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Driver      string
	BoltPath    string
	PostgresDSN string
	Redis       RedisConfig
}

// Open builds the backend named by cfg.Driver.
func Open(cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		logger.Warn("Using in-memory document store; data is lost on restart")
		return NewMemory(), nil
	case DriverBolt:
		if cfg.BoltPath == "" {
			return nil, fmt.Errorf("docstore: bolt driver requires a path")
		}
		return OpenBolt(cfg.BoltPath, logger)
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("docstore: postgres driver requires a DSN")
		}
		return OpenPostgres(cfg.PostgresDSN)
	case DriverRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("docstore: redis driver requires an address")
		}
		return OpenRedis(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("docstore: unknown driver %q", cfg.Driver)
	}
}
