package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type threadCacheKey struct{}

// WithThreadCacheContext returns a new context carrying the given ThreadCache.
func WithThreadCacheContext(ctx context.Context, c ThreadCache) context.Context {
	return context.WithValue(ctx, threadCacheKey{}, c)
}

// ThreadCacheFromContext retrieves the ThreadCache from the context.
// Returns nil if none was set.
func ThreadCacheFromContext(ctx context.Context) ThreadCache {
	c, _ := ctx.Value(threadCacheKey{}).(ThreadCache)
	return c
}

// ThreadCache caches composite-key → thread-id resolution for the hot
// create-or-get path. It is strictly an optimization: a miss or an error
// falls through to the store, and entries are removed on thread deletion.
type ThreadCache interface {
	Available() bool
	Get(ctx context.Context, tenantID, workflowID, participantID string) (*uuid.UUID, error)
	Set(ctx context.Context, tenantID, workflowID, participantID string, threadID uuid.UUID, ttl time.Duration) error
	Remove(ctx context.Context, tenantID, workflowID, participantID string) error
}

// Loader creates a cache from config.
type Loader func(ctx context.Context) (ThreadCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Select returns the loader for the named cache backend.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache backend: %s", name)
}
