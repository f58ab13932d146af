package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/piwi3910/FabriCut/internal/model"
)

// CachedOrderLookup is a read-through Redis cache in front of an OrderSource.
// Cache failures are logged and the source is used directly.
type CachedOrderLookup struct {
	source OrderSource
	rdb    *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachedOrderLookup wraps source. A nil rdb disables caching.
func NewCachedOrderLookup(source OrderSource, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedOrderLookup {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedOrderLookup{source: source, rdb: rdb, ttl: ttl, log: log}
}

func orderKey(workspaceID, orderID string) string {
	return fmt.Sprintf("fabricut:order:%s:%s", workspaceID, orderID)
}

// GetOrder returns the order from the cache or the source.
func (c *CachedOrderLookup) GetOrder(ctx context.Context, workspaceID, orderID string) (*model.Order, error) {
	key := orderKey(workspaceID, orderID)

	if c.rdb != nil {
		val, err := c.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			order := &model.Order{}
			if err := json.Unmarshal(val, order); err == nil && order.WorkspaceID == workspaceID {
				return order, nil
			}
			c.log.Warn().Str("key", key).Msg("order cache: discarding unreadable entry")
		case !stderrors.Is(err, redis.Nil):
			c.log.Warn().Err(err).Str("key", key).Msg("order cache: get failed (non-fatal)")
		}
	}

	order, err := c.source.GetOrder(ctx, workspaceID, orderID)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil {
		data, err := json.Marshal(order)
		if err == nil {
			err = c.rdb.Set(ctx, key, data, c.ttl).Err()
		}
		if err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("order cache: set failed (non-fatal)")
		}
	}
	return order, nil
}

// Invalidate drops a cached order.
func (c *CachedOrderLookup) Invalidate(ctx context.Context, workspaceID, orderID string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, orderKey(workspaceID, orderID)).Err()
}
