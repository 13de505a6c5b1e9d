// Package redis persists market keys with go-redis/v9.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rovshanmuradov/raydium-sniper/internal/cache"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

const marketTTL = 24 * time.Hour

// MarketStore implements cache.MarketStore.
//
// Key schema:
//
//	sniper:market:{id} - JSON encoded raydium.MarketKeys
type MarketStore struct {
	rdb *redis.Client
}

// Connect parses a redis:// URL, pings the server and returns a store.
func Connect(ctx context.Context, rawURL string) (*MarketStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewMarketStore(rdb), nil
}

func NewMarketStore(rdb *redis.Client) *MarketStore {
	return &MarketStore{rdb: rdb}
}

func marketKey(id string) string { return "sniper:market:" + id }

// Get returns cache.ErrMarketNotFound when the key does not exist.
func (s *MarketStore) Get(ctx context.Context, id string) (raydium.MarketKeys, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return raydium.MarketKeys{}, cache.ErrMarketNotFound
		}
		return raydium.MarketKeys{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var keys raydium.MarketKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return raydium.MarketKeys{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return keys, nil
}

// Save stores keys with a 24h TTL.
func (s *MarketStore) Save(ctx context.Context, id string, keys raydium.MarketKeys) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", id, err)
	}
	if err := s.rdb.Set(ctx, marketKey(id), data, marketTTL).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", id, err)
	}
	return nil
}

// Close closes the connection.
func (s *MarketStore) Close() error {
	return s.rdb.Close()
}

var _ cache.MarketStore = (*MarketStore)(nil)
