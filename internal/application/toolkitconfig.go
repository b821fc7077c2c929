// Package application holds the toolkit configuration layer: per-agent,
// per-user lazy factories that consult the token store to decide whether a
// capability is available and cache constructed API clients.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentvault/agentvault/internal/domain/model"
	"github.com/agentvault/agentvault/internal/domain/port/driven"
)

// BuildFunc constructs an agent's toolkit from the decrypted records of its
// required providers, keyed by provider name. It runs at most once per user
// until Invalidate is called.
type BuildFunc[T any] func(ctx context.Context, records map[string]*model.Record) (T, error)

// ToolkitConfig manages one agent's toolkit lifecycle: it answers whether a
// user has every required provider configured, lazily builds the toolkit
// from stored credentials, and caches it per user for the process lifetime.
// The cache has no eviction; growth is proportional to distinct users.
type ToolkitConfig[T any] struct {
	agent     string
	store     driven.TokenStore
	providers []string
	build     BuildFunc[T]
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]T
}

// NewToolkitConfig creates a config for the named agent requiring records
// for every listed provider. build is invoked lazily on first Toolkit call
// per user.
func NewToolkitConfig[T any](agent string, store driven.TokenStore, providers []string, build BuildFunc[T], logger *slog.Logger) *ToolkitConfig[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolkitConfig[T]{
		agent:     agent,
		store:     store,
		providers: providers,
		build:     build,
		logger:    logger,
		cache:     make(map[string]T),
	}
}

// Agent returns the agent name this config serves.
func (c *ToolkitConfig[T]) Agent() string { return c.agent }

// IsConfigured reports whether the user holds a record for every required
// provider. A record that exists but no longer works against the external
// API still counts as configured; that failure surfaces on use.
func (c *ToolkitConfig[T]) IsConfigured(ctx context.Context, userID string) bool {
	for _, provider := range c.providers {
		record, err := c.store.Get(ctx, provider, userID)
		if err != nil {
			c.logger.Error("token lookup failed",
				"agent", c.agent,
				"provider", provider,
				"user_id", userID,
				"error", err,
			)
			return false
		}
		if record == nil {
			return false
		}
	}
	return true
}

// Toolkit returns the user's toolkit, building and caching it on first use.
// It returns an error when any required provider is unconfigured; callers
// translate that into a "please authenticate" prompt.
func (c *ToolkitConfig[T]) Toolkit(ctx context.Context, userID string) (T, error) {
	c.mu.RLock()
	cached, ok := c.cache[userID]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var zero T

	records := make(map[string]*model.Record, len(c.providers))
	for _, provider := range c.providers {
		record, err := c.store.Get(ctx, provider, userID)
		if err != nil {
			return zero, fmt.Errorf("toolkit %s: %w", c.agent, err)
		}
		if record == nil {
			return zero, fmt.Errorf("toolkit %s: provider %q not configured for user %q", c.agent, provider, userID)
		}
		records[provider] = record
	}

	built, err := c.build(ctx, records)
	if err != nil {
		return zero, fmt.Errorf("build toolkit %s: %w", c.agent, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent builder may have won the race; keep the first entry so
	// all callers share one client.
	if cached, ok := c.cache[userID]; ok {
		return cached, nil
	}
	c.cache[userID] = built

	c.logger.Info("toolkit built", "agent", c.agent, "user_id", userID)
	return built, nil
}

// Invalidate drops the cached toolkit for a user. Call after the user's
// credentials change so the next Toolkit call rebuilds from fresh records.
func (c *ToolkitConfig[T]) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, userID)
}
