package check

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/chatwire/conversation-service/internal/config"
	"github.com/chatwire/conversation-service/internal/metrics"
	storemetrics "github.com/chatwire/conversation-service/internal/plugin/store/metrics"
	registrycache "github.com/chatwire/conversation-service/internal/registry/cache"
	registrystore "github.com/chatwire/conversation-service/internal/registry/store"
	"github.com/urfave/cli/v3"

	_ "github.com/chatwire/conversation-service/internal/plugin/cache/noop"
	_ "github.com/chatwire/conversation-service/internal/plugin/cache/redis"
	_ "github.com/chatwire/conversation-service/internal/plugin/store/mongo"
)

// Command returns the check sub-command, a connectivity probe for the
// configured store and cache backends.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify store and cache connectivity",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db-url",
				Sources:  cli.EnvVars("CONVERSATION_SERVICE_DB_URL"),
				Usage:    "MongoDB connection URL",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "db-name",
				Sources: cli.EnvVars("CONVERSATION_SERVICE_DB_NAME"),
				Usage:   "Database name",
				Value:   "conversation_service",
			},
			&cli.StringFlag{
				Name:    "cache-kind",
				Sources: cli.EnvVars("CONVERSATION_SERVICE_CACHE_KIND"),
				Usage:   "Cache backend (redis|none)",
				Value:   "none",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.DefaultConfig()
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			cfg.DBURL = cmd.String("db-url")
			cfg.DBName = cmd.String("db-name")
			cfg.CacheType = cmd.String("cache-kind")
			ctx = config.WithContext(ctx, &cfg)

			metrics.Init()

			cacheLoader, err := registrycache.Select(cfg.CacheType)
			if err != nil {
				return err
			}
			threadCache, err := cacheLoader(ctx)
			if err != nil {
				return err
			}
			ctx = registrycache.WithThreadCacheContext(ctx, threadCache)
			log.Info("Cache backend OK", "kind", cfg.CacheType, "available", threadCache.Available())

			storeLoader, err := registrystore.Select(cfg.DatastoreType)
			if err != nil {
				return err
			}
			store, err := storeLoader(ctx)
			if err != nil {
				return err
			}
			store = storemetrics.Wrap(store)
			defer store.Close(ctx)
			log.Info("Store backend OK", "kind", cfg.DatastoreType)
			return nil
		},
	}
}
