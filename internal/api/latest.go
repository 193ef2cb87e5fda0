package api

import (
	"sync"

	"fleetopt/internal/model"
)

// ResultCache keeps the most recent optimization result per tenant so
// dashboards can poll /v1/optimizations/latest without hitting the store.
type ResultCache struct {
	mu sync.Mutex
	m  map[string]*model.OptimizationResult
}

func NewResultCache() *ResultCache {
	return &ResultCache{m: map[string]*model.OptimizationResult{}}
}

func (c *ResultCache) Put(tenant string, res *model.OptimizationResult) {
	if tenant == "" || res == nil {
		return
	}
	c.mu.Lock()
	c.m[tenant] = res
	c.mu.Unlock()
}

func (c *ResultCache) Get(tenant string) (*model.OptimizationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.m[tenant]
	return res, ok
}
