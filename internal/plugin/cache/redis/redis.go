package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/chatwire/conversation-service/internal/config"
	registrycache "github.com/chatwire/conversation-service/internal/registry/cache"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

func init() {
	registrycache.Register(registrycache.Plugin{
		Name:   "redis",
		Loader: load,
	})
}

func load(ctx context.Context) (registrycache.ThreadCache, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis cache: CONVERSATION_SERVICE_REDIS_URL is required")
	}
	return LoadFromURL(ctx, cfg.RedisURL)
}

// LoadFromURL creates a ThreadCache from a Redis-compatible URL.
func LoadFromURL(ctx context.Context, redisURL string) (registrycache.ThreadCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis cache: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis cache: ping failed: %w", err)
	}
	return &redisThreadCache{client: client}, nil
}

type redisThreadCache struct {
	client *goredis.Client
}

func threadKey(tenantID, workflowID, participantID string) string {
	return fmt.Sprintf("thread-id:%s:%s:%s", tenantID, workflowID, participantID)
}

func (c *redisThreadCache) Available() bool {
	return true
}

func (c *redisThreadCache) Get(ctx context.Context, tenantID, workflowID, participantID string) (*uuid.UUID, error) {
	raw, err := c.client.Get(ctx, threadKey(tenantID, workflowID, participantID)).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, nil // stale/garbage entry, treat as a miss
	}
	return &id, nil
}

func (c *redisThreadCache) Set(ctx context.Context, tenantID, workflowID, participantID string, threadID uuid.UUID, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return c.client.Set(ctx, threadKey(tenantID, workflowID, participantID), threadID.String(), ttl).Err()
}

func (c *redisThreadCache) Remove(ctx context.Context, tenantID, workflowID, participantID string) error {
	return c.client.Del(ctx, threadKey(tenantID, workflowID, participantID)).Err()
}

var _ registrycache.ThreadCache = (*redisThreadCache)(nil)
