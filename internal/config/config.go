package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backlink sources for comment discovery.
const (
	BacklinksConstellation = "constellation"
	BacklinksLocal         = "local"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// SiteURL is the public base URL, used in publication links.
	SiteURL string

	// DatabasePath is the SQLite file holding sessions, the local backlink
	// index and the firehose cursor.
	DatabasePath string

	// Entryway is the PDS or entryway that sign-ins start from.
	Entryway string

	// PLCDirectory resolves did:plc identities.
	PLCDirectory string

	// Backlinks selects where comments are discovered: "constellation" or
	// "local" (the firehose-fed SQLite index).
	Backlinks string

	// ConstellationURL is the backlink index endpoint.
	ConstellationURL string

	// FirehoseURL is the Jetstream WebSocket endpoint.
	FirehoseURL string

	// SessionSecret signs session tokens.
	SessionSecret string

	// SessionTTL is how long a sign-in lasts.
	SessionTTL time.Duration

	// TraceEndpoint is the OTLP/HTTP traces URL; tracing is off when empty.
	TraceEndpoint string

	// LogLevel is debug, info, warn or error.
	LogLevel slog.Level
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	secret := os.Getenv("MYSKY_SESSION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("MYSKY_SESSION_SECRET is required")
	}

	ttl := 30 * 24 * time.Hour
	if v := os.Getenv("MYSKY_SESSION_TTL"); v != "" {
		var err error
		ttl, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MYSKY_SESSION_TTL: %w", err)
		}
	}

	backlinks := strings.ToLower(getenv("MYSKY_BACKLINKS", BacklinksConstellation))
	if backlinks != BacklinksConstellation && backlinks != BacklinksLocal {
		return nil, fmt.Errorf("invalid MYSKY_BACKLINKS %q: want %q or %q", backlinks, BacklinksConstellation, BacklinksLocal)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return &Config{
		Port:             port,
		SiteURL:          strings.TrimRight(getenv("MYSKY_SITE_URL", "https://mysky.wtf"), "/"),
		DatabasePath:     getenv("MYSKY_DATABASE_PATH", "mysky.db"),
		Entryway:         getenv("MYSKY_ENTRYWAY", "https://bsky.social"),
		PLCDirectory:     getenv("MYSKY_PLC_DIRECTORY", "https://plc.directory"),
		Backlinks:        backlinks,
		ConstellationURL: getenv("MYSKY_CONSTELLATION_URL", "https://constellation.microcosm.blue"),
		FirehoseURL:      getenv("MYSKY_FIREHOSE_URL", "wss://jetstream2.us-east.bsky.network/subscribe"),
		SessionSecret:    secret,
		SessionTTL:       ttl,
		TraceEndpoint:    os.Getenv("MYSKY_TRACE_ENDPOINT"),
		LogLevel:         level,
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
