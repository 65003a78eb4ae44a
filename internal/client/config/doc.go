// Package config loads runtime configuration for the fridge CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or --config.
//  3. Environment variables prefixed with FRIDGE_.
//  4. Command-line flags that were set explicitly.
//
// Supported flags
//
//	-s, --server string          base URL of the sync server
//	-d, --db string              path to the local database file
//	-i, --online-check duration  connectivity probe interval
//	    --timeout duration       per-request timeout
//	    --schedule string        cron spec of the periodic sync pass
//	    --log-file string        rotated log file (stderr when empty)
//	    --log-level string       debug, info, warn or error
//	    --log-format string      json or text
//
// # JSON schema
//
// Durations can be strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "database_path": "fridge.db",
//	  "online_check_interval": "3s",
//	  "request_timeout": "10s",
//	  "sync_schedule": "@every 15m"
//	}
package config
