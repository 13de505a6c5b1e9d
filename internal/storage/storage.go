// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/events"
)

// JournalTypes перечисляет события, которые попадают в журнал сделок.
var JournalTypes = []events.EventType{
	events.BuyConfirmed,
	events.BuyFailed,
	events.SellConfirmed,
	events.SellFailed,
}

// Trade описывает запись журнала об одной завершённой покупке или продаже.
type Trade struct {
	ID        uuid.UUID `json:"id"`
	Mint      string    `json:"mint"`
	Side      string    `json:"side"`
	Tranche   string    `json:"tranche,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Signature string    `json:"signature,omitempty"`
	AmountIn  uint64    `json:"amount_in"`
	QuotedOut uint64    `json:"quoted_out,omitempty"`
	Confirmed bool      `json:"confirmed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromEvent переводит событие шины в запись журнала.
func FromEvent(e *events.TradeEvent) Trade {
	return Trade{
		ID:        e.ID,
		Mint:      e.Mint,
		Side:      e.Side,
		Tranche:   e.Tranche,
		Reason:    e.Reason,
		Signature: e.Signature,
		AmountIn:  e.AmountIn,
		QuotedOut: e.QuotedOut,
		Confirmed: e.Type() == events.BuyConfirmed || e.Type() == events.SellConfirmed,
		Error:     e.Error,
		CreatedAt: e.Timestamp(),
	}
}

// Journal определяет интерфейс для работы с журналом сделок.
type Journal interface {
	Record(ctx context.Context, t Trade) error
	// Recent возвращает последние limit записей, новые первыми.
	Recent(ctx context.Context, limit int) ([]Trade, error)
}

const recordTimeout = 5 * time.Second

// Subscribe пишет каждое завершённое событие сделки в журнал.
func Subscribe(bus *events.Bus, journal Journal, logger *zap.Logger) events.Subscription {
	logger = logger.Named("journal")
	return bus.SubscribeFunc(func(ctx context.Context, e events.Event) error {
		te, ok := e.(*events.TradeEvent)
		if !ok {
			return errors.New("unexpected event payload")
		}
		// Запись переживает остановку шины.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		if err := journal.Record(ctx, FromEvent(te)); err != nil {
			logger.Warn("Failed to record trade", zap.String("mint", te.Mint), zap.Error(err))
			return err
		}
		return nil
	}, JournalTypes...)
}

// Memory хранит журнал в памяти фиксированной ёмкости, используется без postgres.
type Memory struct {
	mu     sync.Mutex
	size   int
	trades []Trade
}

// NewMemory создаёт журнал, хранящий не более size последних записей.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 1
	}
	return &Memory{size: size}
}

func (m *Memory) Record(_ context.Context, t Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	if len(m.trades) > m.size {
		m.trades = m.trades[len(m.trades)-m.size:]
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.trades) {
		limit = len(m.trades)
	}
	out := make([]Trade, 0, limit)
	for i := len(m.trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.trades[i])
	}
	return out, nil
}
