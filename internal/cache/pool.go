// internal/cache/pool.go
package cache

import (
	"sync"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

// PoolRecord is a pool seen by the listener.
type PoolRecord struct {
	ID    string
	State *raydium.LiquidityStateV4
}

// PoolCache keeps the latest pool per base mint.
type PoolCache struct {
	logger *zap.Logger

	mu    sync.RWMutex
	pools map[string]PoolRecord
}

func NewPoolCache(logger *zap.Logger) *PoolCache {
	return &PoolCache{
		logger: logger.Named("pool-cache"),
		pools:  make(map[string]PoolRecord),
	}
}

// Save records pool id under its base mint unless the mint is already known.
func (c *PoolCache) Save(id string, state *raydium.LiquidityStateV4) {
	mint := state.BaseMint.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pools[mint]; ok {
		return
	}
	c.logger.Debug("Caching new pool", zap.String("mint", mint), zap.String("pool", id))
	c.pools[mint] = PoolRecord{ID: id, State: state}
}

// Get returns the pool whose base mint is mint.
func (c *PoolCache) Get(mint string) (PoolRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.pools[mint]
	return rec, ok
}
