package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

const planKeyPrefix = "investment:plan:"

// RedisPlanCache keeps resolved configuration tiers as JSON strings.
type RedisPlanCache struct {
	client *redis.Client
}

func NewRedisPlanCache(client *redis.Client) *RedisPlanCache {
	return &RedisPlanCache{client: client}
}

func planKey(scope domain.PlanScope, scopeID string) string {
	return planKeyPrefix + string(scope) + ":" + scopeID
}

func (c *RedisPlanCache) Get(ctx context.Context, scope domain.PlanScope, scopeID string) (ports.CachedPlanTier, bool, error) {
	raw, err := c.client.Get(ctx, planKey(scope, scopeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.CachedPlanTier{}, false, nil
	}
	if err != nil {
		return ports.CachedPlanTier{}, false, err
	}
	var tier ports.CachedPlanTier
	if err := json.Unmarshal(raw, &tier); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next load.
		return ports.CachedPlanTier{}, false, nil
	}
	return tier, true, nil
}

func (c *RedisPlanCache) Set(ctx context.Context, scope domain.PlanScope, scopeID string, tier ports.CachedPlanTier, ttl time.Duration) error {
	raw, err := json.Marshal(tier)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, planKey(scope, scopeID), raw, ttl).Err()
}
