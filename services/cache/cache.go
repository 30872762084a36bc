// Package cache stores rendered screener responses and drops them by tag when
// the underlying data changes. Results are identical with or without a cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"nasdaq_screener/config"
)

// Tags attached to cached responses
const (
	TagGoldenCross      = "golden-cross"
	TagDailyData        = "daily-data"
	TagQuarterlyData    = "quarterly-data"
	TagTurnedProfitable = "turned-profitable"
	TagRuleOf40         = "rule-of-40"
)

// DefaultTTL matches the daily refresh of closing-price data
const DefaultTTL = 24 * time.Hour

// Invalidator drops every entry carrying a tag
type Invalidator interface {
	Invalidate(ctx context.Context, tag string) error
}

// Store is a tag-aware byte cache.
//
// Generation sums how often each tag has been invalidated. Callers read it
// before computing a value and fold it into the key, so a value computed
// across an invalidation lands under a key nobody reads again.
type Store interface {
	Invalidator
	Generation(ctx context.Context, tags ...string) (uint64, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	Close() error
}

// New creates the store selected by cfg.Provider
func New(ctx context.Context, cfg config.CacheConfig, log *logrus.Logger) (Store, error) {
	switch cfg.Provider {
	case "", config.CacheMemory:
		log.Info("Using in-memory response cache")
		return NewMemoryStore(), nil
	case config.CacheRedis:
		return NewRedisStore(ctx, cfg)
	case config.CacheMongo:
		return NewMongoStore(ctx, cfg)
	case config.CacheNone:
		log.Info("Response cache disabled")
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache provider: %s", cfg.Provider)
	}
}

// GenerationKey folds a generation into a cache key
func GenerationKey(key string, generation uint64) string {
	return fmt.Sprintf("%s:g%d", key, generation)
}

// InvalidateAll drops every listed tag, returning the first error
func InvalidateAll(ctx context.Context, inv Invalidator, tags ...string) error {
	if inv == nil {
		return nil
	}
	var first error
	for _, tag := range tags {
		if err := inv.Invalidate(ctx, tag); err != nil && first == nil {
			first = fmt.Errorf("failed to invalidate %s: %w", tag, err)
		}
	}
	return first
}

// Noop never stores anything
type Noop struct{}

func (Noop) Generation(context.Context, ...string) (uint64, error) { return 0, nil }

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Noop) Set(context.Context, string, []byte, time.Duration, ...string) error { return nil }

func (Noop) Invalidate(context.Context, string) error { return nil }

func (Noop) Close() error { return nil }
