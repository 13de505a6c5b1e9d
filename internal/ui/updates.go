package ui

import (
	"context"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/events"
)

// Feed forwards bus events to the dashboard without ever blocking the bus.
type Feed struct {
	msgChan        chan tea.Msg
	sub            events.Subscription
	droppedUpdates uint64
	sentUpdates    uint64
	logger         *zap.Logger
	statsInterval  time.Duration
	stopStats      chan struct{}
}

// NewFeed subscribes to every pool and trade event of bus.
func NewFeed(bus *events.Bus, buffer int, logger *zap.Logger) *Feed {
	f := &Feed{
		msgChan:       make(chan tea.Msg, buffer),
		logger:        logger.Named("ui-feed"),
		statsInterval: 30 * time.Second,
		stopStats:     make(chan struct{}),
	}
	f.sub = bus.SubscribeFunc(f.handle,
		events.PoolDetected,
		events.BuySkipped, events.BuyConfirmed, events.BuyFailed,
		events.SellSkipped, events.SellConfirmed, events.SellFailed,
	)

	// Start periodic stats logging
	go f.logStats()
	return f
}

func (f *Feed) handle(_ context.Context, e events.Event) error {
	switch ev := e.(type) {
	case *events.TradeEvent:
		f.send(TradeMsg{Event: ev})
	case *events.PoolDetectedEvent:
		f.send(PoolMsg{Event: ev})
	}
	return nil
}

// send delivers msg or drops it when the dashboard lags behind.
func (f *Feed) send(msg tea.Msg) {
	select {
	case f.msgChan <- msg:
		atomic.AddUint64(&f.sentUpdates, 1)
	default:
		atomic.AddUint64(&f.droppedUpdates, 1)
	}
}

// Messages is the channel the dashboard reads from.
func (f *Feed) Messages() <-chan tea.Msg {
	return f.msgChan
}

// Stats returns current statistics
func (f *Feed) Stats() (sent, dropped uint64) {
	return atomic.LoadUint64(&f.sentUpdates), atomic.LoadUint64(&f.droppedUpdates)
}

func (f *Feed) logStats() {
	ticker := time.NewTicker(f.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sent, dropped := f.Stats()
			if dropped > 0 {
				f.logger.Warn("UI update statistics",
					zap.Uint64("sent", sent),
					zap.Uint64("dropped", dropped),
					zap.Float64("drop_rate", float64(dropped)/float64(sent+dropped)*100))
			}
		case <-f.stopStats:
			return
		}
	}
}

// Close unsubscribes from the bus and stops the stats loop.
func (f *Feed) Close() {
	f.sub.Unsubscribe()
	close(f.stopStats)
}
