package stock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	levelsCacheKey = "fuelstock:levels"
	levelsGenKey   = "fuelstock:levels:gen"
	levelsCacheTTL = 30 * time.Second
)

// LevelCache keeps the CurrentLevels snapshot in a Redis hash.
// Every ledger write bumps a generation counter and deletes the hash. A reader
// takes the generation before querying and Set only stores its snapshot if no
// write has invalidated since. A nil *LevelCache is a valid, disabled cache.
type LevelCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewLevelCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *LevelCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = levelsCacheTTL
	}
	return &LevelCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *LevelCache) Get(ctx context.Context) (map[string]decimal.Decimal, bool) {
	if c == nil {
		return nil, false
	}

	fields, err := c.client.HGetAll(ctx, levelsCacheKey).Result()
	if err != nil {
		c.logger.Error("failed to get stock levels from cache", zap.Error(err))
		return nil, false
	}
	if len(fields) == 0 {
		return nil, false
	}

	levels := make(map[string]decimal.Decimal, len(fields))
	for product, raw := range fields {
		quantity, err := decimal.NewFromString(raw)
		if err != nil {
			c.logger.Warn("discarding corrupt stock levels cache", zap.String("product", product), zap.Error(err))
			c.Invalidate(ctx)
			return nil, false
		}
		levels[product] = quantity
	}

	return levels, true
}

// Generation returns the current invalidation counter. It must be read before
// the database query whose result is later passed to Set. ok is false when the
// counter cannot be read; the caller then skips Set.
func (c *LevelCache) Generation(ctx context.Context) (gen int64, ok bool) {
	if c == nil {
		return 0, false
	}

	gen, err := c.client.Get(ctx, levelsGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.logger.Error("failed to read stock levels cache generation", zap.Error(err))
		return 0, false
	}
	return gen, true
}

// Set stores levels read at generation gen. The write is dropped when an
// invalidation happened in between, so a pre-commit snapshot never replaces a newer state.
func (c *LevelCache) Set(ctx context.Context, gen int64, levels map[string]decimal.Decimal) {
	if c == nil || len(levels) == 0 {
		return
	}

	values := make(map[string]any, len(levels))
	for product, quantity := range levels {
		values[product] = quantity.String()
	}

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, levelsGenKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			c.logger.Debug("stock levels changed during read, cache fill skipped",
				zap.Int64("read_generation", gen),
				zap.Int64("current_generation", current))
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, levelsCacheKey)
			pipe.HSet(ctx, levelsCacheKey, values)
			pipe.Expire(ctx, levelsCacheKey, c.ttl)
			return nil
		})
		return err
	}, levelsGenKey)
	switch {
	case errors.Is(err, redis.TxFailedErr):
		// 有寫入在 WATCH 期間使快取失效
	case err != nil:
		c.logger.Error("failed to cache stock levels", zap.Error(err))
	}
}

func (c *LevelCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, levelsGenKey)
		pipe.Del(ctx, levelsCacheKey)
		return nil
	})
	if err != nil {
		c.logger.Error("failed to invalidate stock levels cache", zap.Error(err))
	}
}
