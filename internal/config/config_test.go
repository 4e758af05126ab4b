package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(append([]string{"--env-file", ""}, args...)))
	return fs
}

func setRequired(t *testing.T) {
	t.Setenv("AUCTIONDESK_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("AUCTIONDESK_ADMIN_PASSWORD", "s3cret")
	t.Setenv("AUCTIONDESK_SESSION_SECRET", "session-secret")
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("AUCTIONDESK_STORE_DRIVER", "redis")
	t.Setenv("AUCTIONDESK_REDIS_ADDR", "localhost:6379")
	t.Setenv("AUCTIONDESK_SESSION_TTL", "30m")
	t.Setenv("AUCTIONDESK_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "admin@example.com", cfg.AdminEmail)
	assert.Equal(t, "s3cret", cfg.AdminPassword)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("AUCTIONDESK_HTTP_ADDR", ":9000")

	cfg, err := Load(newFlags(t, "--http-addr", ":7000"))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
}

func TestMissingAdminSecret(t *testing.T) {
	t.Setenv("AUCTIONDESK_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("AUCTIONDESK_ADMIN_PASSWORD", "")
	t.Setenv("AUCTIONDESK_SESSION_SECRET", "x")

	_, err := Load(newFlags(t))
	assert.ErrorIs(t, err, ErrMissing)
}

func TestCredentialsFileOverridesStore(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"driver":"postgres","dsn":"postgres://u:p@db/app"}`), 0o600))

	cfg, err := Load(newFlags(t, "--credentials-file", path))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://u:p@db/app", cfg.Store.PostgresDSN)
}

func TestAbsentCredentialsFileFallsBack(t *testing.T) {
	setRequired(t)
	cfg, err := Load(newFlags(t, "--credentials-file", filepath.Join(t.TempDir(), "missing.json")))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestDotenvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AUCTIONDESK_ADMIN_EMAIL=dot@example.com\nAUCTIONDESK_ADMIN_PASSWORD=pw\nAUCTIONDESK_SESSION_SECRET=ss\n"), 0o600))
	for _, k := range []string{"AUCTIONDESK_ADMIN_EMAIL", "AUCTIONDESK_ADMIN_PASSWORD", "AUCTIONDESK_SESSION_SECRET"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Cleanup(func() {
		for _, k := range []string{"AUCTIONDESK_ADMIN_EMAIL", "AUCTIONDESK_ADMIN_PASSWORD", "AUCTIONDESK_SESSION_SECRET"} {
			_ = os.Unsetenv(k)
		}
	})

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--env-file", envFile}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "dot@example.com", cfg.AdminEmail)
}

func TestTrustedProxies(t *testing.T) {
	setRequired(t)

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)
	assert.Empty(t, cfg.TrustedProxies)

	t.Setenv("AUCTIONDESK_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7")
	cfg, err = Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.7/32"),
	}, cfg.TrustedProxies)

	_, err = Load(newFlags(t, "--trusted-proxies", "not-an-ip"))
	assert.Error(t, err)
}

func TestResetSettings(t *testing.T) {
	setRequired(t)

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)
	assert.Nil(t, cfg.ResetSettings)

	cfg, err = Load(newFlags(t, "--reset-settings", `{"totalPurse":500}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalPurse":500}`, string(cfg.ResetSettings))

	_, err = Load(newFlags(t, "--reset-settings", `[1,2]`))
	assert.Error(t, err)
}
