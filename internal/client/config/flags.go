package config

import (
	"github.com/spf13/pflag"
)

const (
	flagConfig      = "config"
	flagServer      = "server"
	flagDB          = "db"
	flagOnlineCheck = "online-check"
	flagTimeout     = "timeout"
	flagSchedule    = "schedule"
	flagLogFile     = "log-file"
	flagLogLevel    = "log-level"
	flagLogFormat   = "log-format"
)

// BindFlags registers the configuration flags on fs. The defaults shown
// in help output come from LoadDefaults.
func BindFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(flagConfig, "c", "", "path to JSON config file")
	fs.StringP(flagServer, "s", d.ServerURL, "base URL of the sync server")
	fs.StringP(flagDB, "d", d.DatabasePath, "path to the local database file")
	fs.DurationP(flagOnlineCheck, "i", d.OnlineCheckInterval, "connectivity probe interval")
	fs.Duration(flagTimeout, d.RequestTimeout, "per-request timeout")
	fs.String(flagSchedule, d.SyncSchedule, "cron spec of the periodic sync pass")
	fs.String(flagLogFile, d.LogFile, "rotated log file (stderr when empty)")
	fs.String(flagLogLevel, d.LogLevel, "log level: debug, info, warn or error")
	fs.String(flagLogFormat, d.LogFormat, "log format: json or text")
}

// applyFlags copies the flags the user set explicitly into cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	get := func(name string, fn func() error) {
		if err == nil && fs.Changed(name) {
			err = fn()
		}
	}

	get(flagServer, func() (e error) { cfg.ServerURL, e = fs.GetString(flagServer); return })
	get(flagDB, func() (e error) { cfg.DatabasePath, e = fs.GetString(flagDB); return })
	get(flagOnlineCheck, func() (e error) { cfg.OnlineCheckInterval, e = fs.GetDuration(flagOnlineCheck); return })
	get(flagTimeout, func() (e error) { cfg.RequestTimeout, e = fs.GetDuration(flagTimeout); return })
	get(flagSchedule, func() (e error) { cfg.SyncSchedule, e = fs.GetString(flagSchedule); return })
	get(flagLogFile, func() (e error) { cfg.LogFile, e = fs.GetString(flagLogFile); return })
	get(flagLogLevel, func() (e error) { cfg.LogLevel, e = fs.GetString(flagLogLevel); return })
	get(flagLogFormat, func() (e error) { cfg.LogFormat, e = fs.GetString(flagLogFormat); return })
	return err
}
