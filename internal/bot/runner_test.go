package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/raydium-sniper/internal/cache"
	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/listener"
)

type dispatchRecorder struct {
	mu    sync.Mutex
	buys  []solana.PublicKey
	sells []solana.PublicKey
}

func newDispatchRunner(t *testing.T) (*Runner, *dispatchRecorder) {
	t.Helper()
	log := zaptest.NewLogger(t)
	quote := solana.NewWallet().PublicKey()

	rec := &dispatchRecorder{}
	r := NewRunner(&config.Config{}, log)
	r.runTimestamp = 1000
	r.quote = config.QuoteToken{Symbol: "WSOL", Mint: quote, Decimals: 9}
	r.markets = cache.NewMarketCache(nil, quote, nil, log)
	r.pools = cache.NewPoolCache(log)
	r.buy = func(_ context.Context, id solana.PublicKey, _ *raydium.LiquidityStateV4) {
		rec.mu.Lock()
		rec.buys = append(rec.buys, id)
		rec.mu.Unlock()
	}
	r.sell = func(_ context.Context, id solana.PublicKey, _ token.Account) {
		rec.mu.Lock()
		rec.sells = append(rec.sells, id)
		rec.mu.Unlock()
	}
	return r, rec
}

func poolEvent(openTime uint64) listener.PoolEvent {
	return listener.PoolEvent{
		ID: solana.NewWallet().PublicKey(),
		State: &raydium.LiquidityStateV4{
			BaseMint:     solana.NewWallet().PublicKey(),
			MarketID:     solana.NewWallet().PublicKey(),
			PoolOpenTime: openTime,
		},
	}
}

func TestDispatchPools(t *testing.T) {
	ctx := context.Background()

	t.Run("new pool is cached and bought", func(t *testing.T) {
		r, rec := newDispatchRunner(t)
		ev := poolEvent(2000)

		r.dispatch(ctx, ev)
		r.drain()

		require.Len(t, rec.buys, 1)
		assert.Equal(t, ev.ID, rec.buys[0])
		got, ok := r.pools.Get(ev.State.BaseMint.String())
		require.True(t, ok)
		assert.Equal(t, ev.ID.String(), got.ID)
	})

	t.Run("pool opened before startup is ignored", func(t *testing.T) {
		r, rec := newDispatchRunner(t)
		ev := poolEvent(1000)

		r.dispatch(ctx, ev)
		r.drain()

		assert.Empty(t, rec.buys)
		_, ok := r.pools.Get(ev.State.BaseMint.String())
		assert.False(t, ok)
	})

	t.Run("known mint is bought once", func(t *testing.T) {
		r, rec := newDispatchRunner(t)
		ev := poolEvent(2000)

		r.dispatch(ctx, ev)
		again := poolEvent(3000)
		again.State.BaseMint = ev.State.BaseMint
		r.dispatch(ctx, again)
		r.drain()

		assert.Len(t, rec.buys, 1)
	})
}

func TestDispatchWallet(t *testing.T) {
	ctx := context.Background()
	r, rec := newDispatchRunner(t)

	quoteAccount := listener.WalletEvent{
		ID:      solana.NewWallet().PublicKey(),
		Account: token.Account{Mint: r.quote.Mint, Amount: 10},
	}
	held := listener.WalletEvent{
		ID:      solana.NewWallet().PublicKey(),
		Account: token.Account{Mint: solana.NewWallet().PublicKey(), Amount: 10},
	}

	r.dispatch(ctx, quoteAccount)
	r.dispatch(ctx, held)
	r.drain()

	require.Len(t, rec.sells, 1)
	assert.Equal(t, held.ID, rec.sells[0])
	assert.Empty(t, rec.buys)
}

func TestDispatchMarket(t *testing.T) {
	r, _ := newDispatchRunner(t)
	r.dispatch(context.Background(), listener.MarketEvent{
		ID:    solana.NewWallet().PublicKey(),
		State: &raydium.MarketStateV3{},
	})
	assert.Equal(t, 1, r.markets.Len())
}
