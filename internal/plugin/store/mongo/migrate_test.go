package mongo

import (
	"context"
	"testing"

	"github.com/chatwire/conversation-service/internal/config"
	"github.com/stretchr/testify/require"
)

func TestMigratorSkipsWithoutConfig(t *testing.T) {
	m := &mongoMigrator{}
	require.NoError(t, m.Migrate(context.Background()))
}

func TestMigratorSkipsWhenDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DatastoreMigrateAtStart = false
	ctx := config.WithContext(context.Background(), &cfg)

	m := &mongoMigrator{}
	require.NoError(t, m.Migrate(ctx))
}

func TestMigratorSkipsOtherBackends(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DatastoreType = "postgres"
	ctx := config.WithContext(context.Background(), &cfg)

	m := &mongoMigrator{}
	require.NoError(t, m.Migrate(ctx))
}
