package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds all configuration for the conversation service.
type Config struct {
	// Database
	DBURL  string
	DBName string

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// Datastore backend type. Only "mongo" ships today; the registry keeps
	// the seam open.
	DatastoreType string

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Cache backend type: "redis" or "none".
	CacheType string

	// Redis
	RedisURL string

	// Thread-id cache entry TTL.
	ThreadCacheTTL time.Duration

	// EncryptionSecret is a comma-separated list of secrets for message text
	// encryption. The first is primary (used for new encryptions); subsequent
	// entries are legacy (decryption-only, for zero-downtime rotation).
	// Tenant-specific secret resolution happens in the caller; this service
	// only sees the resolved value.
	EncryptionSecret string

	// Retry policy for store operations.
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	// Aggregations slower than this are logged as a performance warning.
	SlowAggregationThreshold time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DBName:                   "conversation_service",
		DatastoreType:            "mongo",
		DatastoreMigrateAtStart:  true,
		CacheType:                "none",
		ThreadCacheTTL:           10 * time.Minute,
		DBMaxOpenConns:           25,
		DBMaxIdleConns:           5,
		RetryMaxAttempts:         3,
		RetryBaseDelay:           100 * time.Millisecond,
		RetryMaxDelay:            5 * time.Second,
		SlowAggregationThreshold: time.Second,
	}
}

// ApplyEnv reads CONVERSATION_SERVICE_* environment variables that are not
// represented by dedicated CLI flags.
func (c *Config) ApplyEnv() error {
	if c == nil {
		return nil
	}

	applyStringEnv("CONVERSATION_SERVICE_DB_URL", &c.DBURL)
	applyStringEnv("CONVERSATION_SERVICE_DB_NAME", &c.DBName)
	applyStringEnv("CONVERSATION_SERVICE_DB_KIND", &c.DatastoreType)
	applyStringEnv("CONVERSATION_SERVICE_CACHE_KIND", &c.CacheType)
	applyStringEnv("CONVERSATION_SERVICE_REDIS_URL", &c.RedisURL)
	applyStringEnv("CONVERSATION_SERVICE_ENCRYPTION_SECRET", &c.EncryptionSecret)

	var err error
	if err = applyBoolEnv("CONVERSATION_SERVICE_DB_MIGRATE_AT_START", &c.DatastoreMigrateAtStart); err != nil {
		return err
	}
	if err = applyIntEnv("CONVERSATION_SERVICE_DB_MAX_OPEN_CONNS", &c.DBMaxOpenConns); err != nil {
		return err
	}
	if err = applyIntEnv("CONVERSATION_SERVICE_DB_MAX_IDLE_CONNS", &c.DBMaxIdleConns); err != nil {
		return err
	}
	if err = applyDurationEnv("CONVERSATION_SERVICE_THREAD_CACHE_TTL", &c.ThreadCacheTTL); err != nil {
		return err
	}
	if err = applyIntEnv("CONVERSATION_SERVICE_RETRY_MAX_ATTEMPTS", &c.RetryMaxAttempts); err != nil {
		return err
	}
	if err = applyDurationEnv("CONVERSATION_SERVICE_RETRY_BASE_DELAY", &c.RetryBaseDelay); err != nil {
		return err
	}
	if err = applyDurationEnv("CONVERSATION_SERVICE_RETRY_MAX_DELAY", &c.RetryMaxDelay); err != nil {
		return err
	}
	if err = applyDurationEnv("CONVERSATION_SERVICE_SLOW_AGGREGATION_THRESHOLD", &c.SlowAggregationThreshold); err != nil {
		return err
	}
	return nil
}

func applyStringEnv(name string, target *string) {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		*target = raw
	}
}

func applyBoolEnv(name string, target *bool) error {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*target = v
	return nil
}

func applyIntEnv(name string, target *int) error {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*target = v
	return nil
}

func applyDurationEnv(name string, target *time.Duration) error {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*target = v
	return nil
}
