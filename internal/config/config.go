// Package config loads runtime settings from flags, AUCTIONDESK_* environment
// variables, an optional config file and an optional .env file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"auctiondesk.app/internal/docstore"
)

const envPrefix = "AUCTIONDESK"

var ErrMissing = errors.New("config: required setting missing")

// Config is the fully resolved process configuration.
type Config struct {
	HTTPAddr        string
	AdminEmail      string
	AdminPassword   string
	SessionSecret   string
	SessionTTL      time.Duration
	Store           docstore.Config
	CredentialsFile string
	CORSOrigins     []string
	LogLevel        string
	LogFormat       string
	RateBurst       int
	RatePerSec      int
	MaxBodyBytes    int64
	TrustedProxies  []netip.Prefix
	ResetSettings   json.RawMessage
}

// credentials mirrors the optional store credentials file.
type credentials struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Path     string `json:"path"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// RegisterFlags declares every setting on fs. Defaults live here.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Optional config file (yaml, json or toml)")
	fs.String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
	fs.String("http-addr", ":8080", "HTTP listen address")
	fs.String("admin-email", "", "Email of the single administrator")
	fs.String("admin-password", "", "Administrator password (prefer env)")
	fs.String("session-secret", "", "HMAC secret for session tokens (prefer env)")
	fs.Duration("session-ttl", 12*time.Hour, "Session token lifetime")
	fs.String("store-driver", docstore.DriverMemory, "Document store: memory, bolt, postgres or redis")
	fs.String("bolt-path", "data/auctiondesk.db", "bbolt file path")
	fs.String("pg-dsn", "", "PostgreSQL DSN")
	fs.String("redis-addr", "", "Redis address")
	fs.String("redis-password", "", "Redis password")
	fs.Int("redis-db", 0, "Redis database number")
	fs.String("credentials-file", "", "Optional JSON file with document store credentials")
	fs.String("cors-origins", "*", "Comma separated list of allowed CORS origins")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "json", "json or console")
	fs.Int("rate-burst", 20, "Burst size for the per-IP limiter on login/register")
	fs.Int("rate-per-sec", 5, "Refill rate for the per-IP limiter on login/register")
	fs.Int64("max-body-bytes", 8<<20, "Maximum request body size")
	fs.String("reset-settings", "", "JSON object written to the settings document by /reset (empty keeps the built-in auction defaults)")
	fs.String("trusted-proxies", "", "Comma separated proxy IPs or CIDRs whose X-Forwarded-For is honored")
}

// Load resolves settings with precedence flag > env > config file > default.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("config: bind flags: %w", err)
	}

	if envFile := v.GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	cfg := Config{
		HTTPAddr:      v.GetString("http-addr"),
		AdminEmail:    strings.TrimSpace(v.GetString("admin-email")),
		AdminPassword: v.GetString("admin-password"),
		SessionSecret: v.GetString("session-secret"),
		SessionTTL:    v.GetDuration("session-ttl"),
		Store: docstore.Config{
			Driver:      v.GetString("store-driver"),
			BoltPath:    v.GetString("bolt-path"),
			PostgresDSN: v.GetString("pg-dsn"),
			Redis: docstore.RedisConfig{
				Addr:     v.GetString("redis-addr"),
				Password: v.GetString("redis-password"),
				DB:       v.GetInt("redis-db"),
			},
		},
		CredentialsFile: v.GetString("credentials-file"),
		CORSOrigins:     splitList(v.GetString("cors-origins")),
		LogLevel:        v.GetString("log-level"),
		LogFormat:       v.GetString("log-format"),
		RateBurst:       v.GetInt("rate-burst"),
		RatePerSec:      v.GetInt("rate-per-sec"),
		MaxBodyBytes:    v.GetInt64("max-body-bytes"),
	}

	proxies, err := parsePrefixes(splitList(v.GetString("trusted-proxies")))
	if err != nil {
		return Config{}, err
	}
	cfg.TrustedProxies = proxies
	if raw := strings.TrimSpace(v.GetString("reset-settings")); raw != "" {
		cfg.ResetSettings = json.RawMessage(raw)
	}

	if err := applyCredentials(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first missing required setting.
func (c Config) Validate() error {
	switch {
	case c.AdminEmail == "":
		return fmt.Errorf("%w: admin email (%s_ADMIN_EMAIL)", ErrMissing, envPrefix)
	case c.AdminPassword == "":
		return fmt.Errorf("%w: admin password (%s_ADMIN_PASSWORD)", ErrMissing, envPrefix)
	case c.SessionSecret == "":
		return fmt.Errorf("%w: session secret (%s_SESSION_SECRET)", ErrMissing, envPrefix)
	case c.SessionTTL <= 0:
		return fmt.Errorf("config: session ttl must be positive")
	case c.ResetSettings != nil && !isObject(c.ResetSettings):
		return fmt.Errorf("config: reset settings must be a JSON object")
	}
	return nil
}

// applyCredentials overrides store settings from the credentials file when it exists.
// A configured but absent file falls back to the ambient settings.
func applyCredentials(cfg *Config) error {
	if cfg.CredentialsFile == "" {
		return nil
	}
	raw, err := os.ReadFile(cfg.CredentialsFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read credentials: %w", err)
	}
	var creds credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return fmt.Errorf("config: parse credentials: %w", err)
	}
	if creds.Driver != "" {
		cfg.Store.Driver = creds.Driver
	}
	if creds.DSN != "" {
		cfg.Store.PostgresDSN = creds.DSN
	}
	if creds.Path != "" {
		cfg.Store.BoltPath = creds.Path
	}
	if creds.Addr != "" {
		cfg.Store.Redis.Addr = creds.Addr
		cfg.Store.Redis.Password = creds.Password
		cfg.Store.Redis.DB = creds.DB
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePrefixes accepts CIDRs and bare addresses; a bare address becomes a single-host prefix.
func parsePrefixes(items []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range items {
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("config: trusted proxy %q: %w", item, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("config: trusted proxy %q: %w", item, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func isObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}
