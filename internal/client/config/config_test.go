package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func parsed(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeJSON(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()
	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, "@every 15m", c.SyncSchedule)
	require.NoError(t, c.Validate())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load(parsed(t))
	require.NoError(t, err)
	if diff := cmp.Diff(defaults(), *cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeJSON(t, `{
		"server_url": "http://json:1",
		"database_path": "json.db",
		"online_check_interval": "7s",
		"request_timeout": 2000000000,
		"log_level": "debug"
	}`)
	t.Setenv("FRIDGE_DB", "env.db")
	t.Setenv("FRIDGE_REQUEST_TIMEOUT", "4s")
	t.Setenv("FRIDGE_SYNC_SCHEDULE", "@every 1h")

	cfg, err := Load(parsed(t, "-c", path, "--schedule", "*/5 * * * *", "--log-format=text"))
	require.NoError(t, err)

	want := defaults()
	want.ServerURL = "http://json:1"
	want.DatabasePath = "env.db"
	want.OnlineCheckInterval = 7 * time.Second
	want.RequestTimeout = 4 * time.Second
	want.SyncSchedule = "*/5 * * * *"
	want.LogLevel = "debug"
	want.LogFormat = "text"
	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_UnchangedFlagsDoNotOverride(t *testing.T) {
	t.Setenv("FRIDGE_SERVER_URL", "https://env.example")

	cfg, err := Load(parsed(t, "-i", "9s"))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.ServerURL)
	assert.Equal(t, 9*time.Second, cfg.OnlineCheckInterval)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(parsed(t, "-c", filepath.Join(t.TempDir(), "nope.json")))
		require.Error(t, err)
	})
	t.Run("bad json", func(t *testing.T) {
		_, err := Load(parsed(t, "-c", writeJSON(t, `{"online_check_interval": true}`)))
		require.Error(t, err)
	})
	t.Run("bad env duration", func(t *testing.T) {
		t.Setenv("FRIDGE_ONLINE_CHECK_INTERVAL", "soon")
		_, err := Load(parsed(t))
		require.Error(t, err)
	})
	t.Run("invalid url", func(t *testing.T) {
		_, err := Load(parsed(t, "-s", "ftp://x"))
		require.ErrorContains(t, err, "server url")
	})
	t.Run("non-positive interval", func(t *testing.T) {
		_, err := Load(parsed(t, "-i", "0s"))
		require.ErrorContains(t, err, "online check interval")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db", func(c *Config) { c.DatabasePath = "" }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"empty schedule", func(c *Config) { c.SyncSchedule = "" }},
		{"no host", func(c *Config) { c.ServerURL = "http://" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, d.UnmarshalJSON([]byte(`1500`)))
	assert.Equal(t, 1500*time.Nanosecond, d.Duration)

	assert.Error(t, d.UnmarshalJSON([]byte(`"later"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`[]`)))

	b, err := Duration{Duration: 3 * time.Second}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"3s"`, string(b))
}
