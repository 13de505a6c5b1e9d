// internal/cache/cache.go
package cache

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

var (
	ErrMarketNotFound = errors.New("market not found")
	ErrPoolNotFound   = errors.New("pool not found")
)

// MarketStore persists market keys between runs.
type MarketStore interface {
	Get(ctx context.Context, id string) (raydium.MarketKeys, error)
	Save(ctx context.Context, id string, keys raydium.MarketKeys) error
}
