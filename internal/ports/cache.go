package ports

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

// CachedPlanTier remembers absent tiers as well as present ones.
type CachedPlanTier struct {
	Found    bool                `json:"found"`
	Override domain.PlanOverride `json:"override"`
}

type PlanCache interface {
	Get(ctx context.Context, scope domain.PlanScope, scopeID string) (CachedPlanTier, bool, error)
	Set(ctx context.Context, scope domain.PlanScope, scopeID string, tier CachedPlanTier, ttl time.Duration) error
}

// RunLock serializes batch runs across replicas. Release must be called
// when acquired is true.
type RunLock interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}
