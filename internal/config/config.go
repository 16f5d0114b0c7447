package config

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string
	LogLevel    string
	HTTPAddr    string

	// DATABASE_URL empty means the in-memory store (development only).
	DatabaseURL string
	// NATS_URL empty disables event publishing.
	NATSURL string

	// SessionSecret signs ownership cookies and action links. Generated
	// per process when unset, which invalidates outstanding tokens on
	// restart.
	SessionSecret string
	HashSalt      string

	Moderation      bool
	OwnershipWindow time.Duration
	PurgeAfter      time.Duration
	PurgeSchedule   string
	LatestEnabled   bool
}

func Load() (Config, error) {
	cfg := Config{
		ServiceName: envStr("SERVICE_NAME", "comments"),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		HTTPAddr:    envStr("HTTP_ADDR", ":8080"),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		NATSURL:     strings.TrimSpace(os.Getenv("NATS_URL")),

		SessionSecret: strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		HashSalt:      envStr("HASH_SALT", "Eech7co8Ohloopo9Ol6baimi"),

		Moderation:      envBool("MODERATION_ENABLED", false),
		OwnershipWindow: envDuration("OWNERSHIP_WINDOW", 15*time.Minute),
		PurgeAfter:      envDuration("PURGE_AFTER", 30*24*time.Hour),
		PurgeSchedule:   envStr("PURGE_SCHEDULE", "@hourly"),
		LatestEnabled:   envBool("LATEST_ENABLED", false),
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = randomSecret()
	}
	return cfg, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
