package noop

import (
	"context"
	"time"

	"github.com/chatwire/conversation-service/internal/registry/cache"
	"github.com/google/uuid"
)

func init() {
	cache.Register(cache.Plugin{
		Name: "none",
		Loader: func(ctx context.Context) (cache.ThreadCache, error) {
			return &noopThreadCache{}, nil
		},
	})
}

type noopThreadCache struct{}

func (n *noopThreadCache) Available() bool { return false }
func (n *noopThreadCache) Get(_ context.Context, _, _, _ string) (*uuid.UUID, error) {
	return nil, nil
}
func (n *noopThreadCache) Set(_ context.Context, _, _, _ string, _ uuid.UUID, _ time.Duration) error {
	return nil
}
func (n *noopThreadCache) Remove(_ context.Context, _, _, _ string) error { return nil }

var _ cache.ThreadCache = (*noopThreadCache)(nil)
