// Package config loads engine configuration from flags, environment
// variables and an optional .env file.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Options holds the configuration values for the engine.
type Options struct {
	// DataDir is where the local SQLite database lives.
	DataDir string
	// APIBaseURL is the base URL of the remote health API.
	APIBaseURL string
	// UserID identifies the device owner.
	UserID string
	// SyncInterval is the auto-sync period.
	SyncInterval time.Duration
	// LocationTimeout bounds geolocation resolution during alerts.
	LocationTimeout time.Duration
	// LocationURL is the local positioning endpoint queried for alerts.
	LocationURL string
	// ProbeURL is polled by the connectivity monitor.
	ProbeURL string
	// ProbeInterval is the connectivity probe period.
	ProbeInterval time.Duration
	// SMSOpener is the command used to open sms: URIs.
	SMSOpener string
	// ListenAddr is where the local control API listens.
	ListenAddr string
	// LogLevel is the zap level (debug, info, warn, error).
	LogLevel string
}

// Defaults mirror the engine's documented behavior: sync every 5 minutes,
// give location resolution 5 seconds.
const (
	DefaultSyncInterval    = 5 * time.Minute
	DefaultLocationTimeout = 5 * time.Second
	DefaultProbeInterval   = 30 * time.Second
)

// Load parses configuration in precedence order: defaults, .env file,
// environment variables, then flags from args.
func Load(args []string) (*Options, error) {
	// Missing .env is fine; explicit files are the caller's problem.
	_ = godotenv.Load()

	opts := &Options{
		DataDir:         envOr("NALAM_DATA_DIR", "./data"),
		APIBaseURL:      envOr("NALAM_API_URL", "https://api.nalam.local"),
		UserID:          os.Getenv("NALAM_USER_ID"),
		SyncInterval:    DefaultSyncInterval,
		LocationTimeout: DefaultLocationTimeout,
		LocationURL:     envOr("NALAM_LOCATION_URL", "http://127.0.0.1:7979/position"),
		ProbeURL:        envOr("NALAM_PROBE_URL", ""),
		ProbeInterval:   DefaultProbeInterval,
		SMSOpener:       envOr("NALAM_SMS_OPENER", "xdg-open"),
		ListenAddr:      envOr("NALAM_LISTEN_ADDR", "127.0.0.1:8990"),
		LogLevel:        envOr("NALAM_LOG_LEVEL", "info"),
	}

	if v := os.Getenv("NALAM_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("NALAM_SYNC_INTERVAL: %w", err)
		}
		opts.SyncInterval = d
	}
	if v := os.Getenv("NALAM_LOCATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("NALAM_LOCATION_TIMEOUT: %w", err)
		}
		opts.LocationTimeout = d
	}

	fs := flag.NewFlagSet("nalamd", flag.ContinueOnError)
	fs.StringVar(&opts.DataDir, "data-dir", opts.DataDir, "local database directory")
	fs.StringVar(&opts.APIBaseURL, "api-url", opts.APIBaseURL, "remote API base URL")
	fs.StringVar(&opts.UserID, "user", opts.UserID, "user id")
	fs.DurationVar(&opts.SyncInterval, "sync-interval", opts.SyncInterval, "auto-sync interval")
	fs.DurationVar(&opts.LocationTimeout, "location-timeout", opts.LocationTimeout, "geolocation timeout")
	fs.StringVar(&opts.LocationURL, "location-url", opts.LocationURL, "local positioning endpoint")
	fs.StringVar(&opts.ProbeURL, "probe-url", opts.ProbeURL, "connectivity probe URL (defaults to api-url)")
	fs.DurationVar(&opts.ProbeInterval, "probe-interval", opts.ProbeInterval, "connectivity probe interval")
	fs.StringVar(&opts.SMSOpener, "sms-opener", opts.SMSOpener, "command used to open sms: URIs")
	fs.StringVar(&opts.ListenAddr, "listen", opts.ListenAddr, "local control API address")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.ProbeURL == "" {
		opts.ProbeURL = opts.APIBaseURL
	}
	if opts.SyncInterval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", opts.SyncInterval)
	}
	if opts.LocationTimeout <= 0 {
		return nil, fmt.Errorf("location timeout must be positive, got %s", opts.LocationTimeout)
	}

	return opts, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
