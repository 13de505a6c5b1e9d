// internal/cache/market.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

// MarketClient is the chain access the market cache needs.
type MarketClient interface {
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetProgramAccountsWithOpts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
}

// MarketCache keeps OpenBook market keys by market id. Misses are fetched
// from the chain and cached.
type MarketCache struct {
	client    MarketClient
	quoteMint solana.PublicKey
	store     MarketStore
	logger    *zap.Logger

	mu      sync.RWMutex
	markets map[string]raydium.MarketKeys
}

// NewMarketCache creates a cache. store may be nil.
func NewMarketCache(client MarketClient, quoteMint solana.PublicKey, store MarketStore, logger *zap.Logger) *MarketCache {
	return &MarketCache{
		client:    client,
		quoteMint: quoteMint,
		store:     store,
		logger:    logger.Named("market-cache"),
		markets:   make(map[string]raydium.MarketKeys),
	}
}

// Init preloads every OpenBook market quoted in the configured mint.
func (c *MarketCache) Init(ctx context.Context) error {
	c.logger.Info("Fetching existing markets", zap.String("quote_mint", c.quoteMint.String()))

	accounts, err := c.client.GetProgramAccountsWithOpts(ctx, raydium.OpenBookProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{DataSize: raydium.MarketStateV3Size},
			{Memcmp: &rpc.RPCFilterMemcmp{
				Offset: raydium.MarketQuoteMintOffset,
				Bytes:  solana.Base58(c.quoteMint.Bytes()),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}

	loaded := 0
	for _, acc := range accounts {
		if acc == nil || acc.Account == nil || acc.Account.Data == nil {
			continue
		}
		market, err := raydium.DecodeMarketState(acc.Account.Data.GetBinary())
		if err != nil {
			c.logger.Debug("Skipping undecodable market",
				zap.String("market", acc.Pubkey.String()),
				zap.Error(err))
			continue
		}
		c.put(acc.Pubkey.String(), market.Keys())
		loaded++
	}

	c.logger.Info("Cached markets", zap.Int("count", loaded))
	return nil
}

// Save caches the keys of a market seen on the wire.
func (c *MarketCache) Save(ctx context.Context, id string, market *raydium.MarketStateV3) {
	c.mu.RLock()
	_, exists := c.markets[id]
	c.mu.RUnlock()
	if exists {
		return
	}

	keys := market.Keys()
	c.logger.Debug("Caching new market", zap.String("market", id))
	c.put(id, keys)
	c.persist(ctx, id, keys)
}

// Get returns the keys for market id, fetching them on a miss.
func (c *MarketCache) Get(ctx context.Context, id string) (raydium.MarketKeys, error) {
	c.mu.RLock()
	keys, ok := c.markets[id]
	c.mu.RUnlock()
	if ok {
		return keys, nil
	}

	if c.store != nil {
		keys, err := c.store.Get(ctx, id)
		if err == nil {
			c.put(id, keys)
			return keys, nil
		}
		if !errors.Is(err, ErrMarketNotFound) {
			c.logger.Warn("Market store lookup failed", zap.String("market", id), zap.Error(err))
		}
	}

	keys, err := c.fetch(ctx, id)
	if err != nil {
		return raydium.MarketKeys{}, err
	}
	c.put(id, keys)
	c.persist(ctx, id, keys)
	return keys, nil
}

// Len returns the number of cached markets.
func (c *MarketCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.markets)
}

func (c *MarketCache) fetch(ctx context.Context, id string) (raydium.MarketKeys, error) {
	c.logger.Debug("Fetching market", zap.String("market", id))

	pubkey, err := solana.PublicKeyFromBase58(id)
	if err != nil {
		return raydium.MarketKeys{}, fmt.Errorf("invalid market id %q: %w", id, err)
	}
	info, err := c.client.GetAccountInfo(ctx, pubkey)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return raydium.MarketKeys{}, fmt.Errorf("%w: %s", ErrMarketNotFound, id)
		}
		return raydium.MarketKeys{}, fmt.Errorf("fetch market %s: %w", id, err)
	}
	if info == nil || info.Value == nil || info.Value.Data == nil {
		return raydium.MarketKeys{}, fmt.Errorf("%w: %s", ErrMarketNotFound, id)
	}

	market, err := raydium.DecodeMarketState(info.Value.Data.GetBinary())
	if err != nil {
		return raydium.MarketKeys{}, err
	}
	return market.Keys(), nil
}

func (c *MarketCache) put(id string, keys raydium.MarketKeys) {
	c.mu.Lock()
	c.markets[id] = keys
	c.mu.Unlock()
}

func (c *MarketCache) persist(ctx context.Context, id string, keys raydium.MarketKeys) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, id, keys); err != nil {
		c.logger.Warn("Failed to persist market", zap.String("market", id), zap.Error(err))
	}
}
