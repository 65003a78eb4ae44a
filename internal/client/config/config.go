package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"
)

// Config holds runtime settings for the fridge CLI.
type Config struct {
	ServerURL           string        `env:"FRIDGE_SERVER_URL"`
	DatabasePath        string        `env:"FRIDGE_DB"`
	OnlineCheckInterval time.Duration `env:"FRIDGE_ONLINE_CHECK_INTERVAL"`
	RequestTimeout      time.Duration `env:"FRIDGE_REQUEST_TIMEOUT"`
	SyncSchedule        string        `env:"FRIDGE_SYNC_SCHEDULE"`
	LogFile             string        `env:"FRIDGE_LOG_FILE"`
	LogLevel            string        `env:"FRIDGE_LOG_LEVEL"`
	LogFormat           string        `env:"FRIDGE_LOG_FORMAT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabasePath = "fridge.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.SyncSchedule = "@every 15m"
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server url %q: must be an absolute http(s) url", c.ServerURL)
	}
	if c.DatabasePath == "" {
		return errors.New("database path is empty")
	}
	if c.OnlineCheckInterval <= 0 {
		return fmt.Errorf("online check interval %s: must be positive", c.OnlineCheckInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout %s: must be positive", c.RequestTimeout)
	}
	if c.SyncSchedule == "" {
		return errors.New("sync schedule is empty")
	}
	return nil
}

// Load builds a Config from defaults, the JSON file named by the config
// flag, the environment and the flags in fs that were set explicitly.
// Later sources take precedence over earlier ones. fs must have been
// prepared with BindFlags and parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	path, err := fs.GetString(flagConfig)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := parseJSON(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
