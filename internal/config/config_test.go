package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "mongo", cfg.DatastoreType)
	assert.Equal(t, "conversation_service", cfg.DBName)
	assert.Equal(t, "none", cfg.CacheType)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, time.Second, cfg.SlowAggregationThreshold)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CONVERSATION_SERVICE_DB_URL", "mongodb://localhost:27017")
	t.Setenv("CONVERSATION_SERVICE_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("CONVERSATION_SERVICE_RETRY_BASE_DELAY", "250ms")
	t.Setenv("CONVERSATION_SERVICE_DB_MIGRATE_AT_START", "false")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "mongodb://localhost:27017", cfg.DBURL)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	assert.False(t, cfg.DatastoreMigrateAtStart)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	t.Setenv("CONVERSATION_SERVICE_RETRY_MAX_ATTEMPTS", "lots")
	cfg := DefaultConfig()
	require.Error(t, cfg.ApplyEnv())
}

func TestContextCarry(t *testing.T) {
	cfg := DefaultConfig()
	ctx := WithContext(t.Context(), &cfg)
	assert.Same(t, &cfg, FromContext(ctx))
	assert.Nil(t, FromContext(t.Context()))
}
