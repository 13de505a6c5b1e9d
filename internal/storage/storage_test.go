package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/raydium-sniper/internal/events"
)

func TestMemoryRecentNewestFirst(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()
	for _, mint := range []string{"a", "b", "c"} {
		require.NoError(t, m.Record(ctx, Trade{Mint: mint}))
	}

	got, err := m.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Mint)
	assert.Equal(t, "b", got[1].Mint)

	got, err = m.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFromEvent(t *testing.T) {
	e := &events.TradeEvent{
		BaseEvent: events.NewBase(events.SellConfirmed),
		Mint:      "mint",
		Side:      "sell",
		Tranche:   "first",
		Reason:    "take_profit",
		AmountIn:  500,
		QuotedOut: 160,
	}
	tr := FromEvent(e)
	assert.True(t, tr.Confirmed)
	assert.Equal(t, e.ID, tr.ID)
	assert.Equal(t, uint64(160), tr.QuotedOut)

	e.BaseEvent = events.NewBase(events.SellFailed)
	assert.False(t, FromEvent(e).Confirmed)
}

func TestSubscribeRecordsTradeOutcomes(t *testing.T) {
	log := zaptest.NewLogger(t)
	bus := events.NewBus(log, 16)
	defer bus.Shutdown(context.Background())

	m := NewMemory(10)
	sub := Subscribe(bus, m, log)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(&events.TradeEvent{BaseEvent: events.NewBase(events.BuySkipped), Mint: "skipped"}))
	require.NoError(t, bus.Publish(&events.TradeEvent{BaseEvent: events.NewBase(events.BuyConfirmed), Mint: "bought"}))

	require.Eventually(t, func() bool {
		got, _ := m.Recent(context.Background(), 10)
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)

	got, err := m.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "bought", got[0].Mint)
}
