package memory

import (
	"context"
	"sync"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

type cachedTier struct {
	tier      ports.CachedPlanTier
	expiresAt time.Time
}

// PlanCache is a process-local ports.PlanCache.
type PlanCache struct {
	mu    sync.RWMutex
	items map[string]cachedTier
	now   func() time.Time
}

func NewPlanCache() *PlanCache {
	return &PlanCache{items: make(map[string]cachedTier), now: time.Now}
}

func (c *PlanCache) Get(_ context.Context, scope domain.PlanScope, scopeID string) (ports.CachedPlanTier, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[planKey(scope, scopeID)]
	if !ok || !c.now().Before(item.expiresAt) {
		return ports.CachedPlanTier{}, false, nil
	}
	return item.tier, true, nil
}

func (c *PlanCache) Set(_ context.Context, scope domain.PlanScope, scopeID string, tier ports.CachedPlanTier, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[planKey(scope, scopeID)] = cachedTier{tier: tier, expiresAt: c.now().Add(ttl)}
	return nil
}

// RunLock is a process-local ports.RunLock.
type RunLock struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewRunLock() *RunLock {
	return &RunLock{held: make(map[string]time.Time)}
}

func (l *RunLock) TryAcquire(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if until, ok := l.held[name]; ok && now.Before(until) {
		return nil, false, nil
	}
	l.held[name] = now.Add(ttl)
	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, name)
		return nil
	}
	return release, true, nil
}
