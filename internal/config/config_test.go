package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "offpos.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
db: /var/lib/offpos/till.db
authority:
  url: https://pos.example.com
  timeout: 3s
  breaker:
    failures: 5
sync:
  probe_interval: 0s
log:
  level: WARN
`)
	cfg, err := Load(Options{File: path})
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/offpos/till.db", cfg.DB)
	assert.Equal(t, "https://pos.example.com", cfg.Authority.URL)
	assert.Equal(t, 3*time.Second, cfg.Authority.Timeout)
	assert.Equal(t, 5, cfg.Authority.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.Authority.BreakerCooldown, "unset keys keep defaults")
	assert.Zero(t, cfg.Sync.ProbeInterval)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_PrecedenceEnvOverFileFlagOverEnv(t *testing.T) {
	path := writeFile(t, "db: file.db\nauthority:\n  url: http://file:1\n")
	t.Setenv("OFFPOS_DB", "env.db")
	t.Setenv("OFFPOS_AUTHORITY_URL", "http://env:2")
	t.Setenv("OFFPOS_SYNC_RESUBSCRIBE_DELAY", "750ms")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("db", "offpos.db", "")
	fs.String("authority", "", "")
	require.NoError(t, fs.Parse([]string{"--db", "flag.db"}))

	cfg, err := Load(Options{File: path, Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, "flag.db", cfg.DB)
	assert.Equal(t, "http://env:2", cfg.Authority.URL, "unset flag does not shadow env")
	assert.Equal(t, 750*time.Millisecond, cfg.Sync.ResubscribeDelay)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
	assert.False(t, IsInvalid(err))
}

func TestLoad_Verbose(t *testing.T) {
	cfg, err := Load(Options{Verbose: true})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db", func(c *Config) { c.DB = "" }},
		{"non-http url", func(c *Config) { c.Authority.URL = "ftp://x" }},
		{"zero timeout", func(c *Config) { c.Authority.Timeout = 0 }},
		{"zero failures", func(c *Config) { c.Authority.BreakerFailures = 0 }},
		{"negative probe", func(c *Config) { c.Sync.ProbeInterval = -time.Second }},
		{"zero resubscribe", func(c *Config) { c.Sync.ResubscribeDelay = 0 }},
		{"unknown level", func(c *Config) { c.Log.Level = "trace" }},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsInvalid(err), "got %v", err)
		})
	}
}

func TestLoad_InvalidFromEnv(t *testing.T) {
	t.Setenv("OFFPOS_LOG_FORMAT", "xml")
	_, err := Load(Options{})
	assert.True(t, IsInvalid(err), "got %v", err)
}

func TestLogger_Format(t *testing.T) {
	cfg := Defaults()
	cfg.Log.Format = "json"
	var buf bytes.Buffer
	cfg.Logger(&buf).Info("hello", "pending", 2)
	assert.Contains(t, buf.String(), `"pending":2`)

	buf.Reset()
	cfg.Log.Format = "text"
	cfg.Logger(&buf).Debug("hidden")
	assert.Empty(t, buf.String())
}
