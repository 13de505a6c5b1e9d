// internal/events/types.go
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event.
type EventType string

const (
	PoolDetected EventType = "pool.detected"

	BuySkipped   EventType = "buy.skipped"
	BuyConfirmed EventType = "buy.confirmed"
	BuyFailed    EventType = "buy.failed"

	SellSkipped   EventType = "sell.skipped"
	SellConfirmed EventType = "sell.confirmed"
	SellFailed    EventType = "sell.failed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	ID        uuid.UUID
	EventType EventType
	EventTime time.Time
}

// NewBase stamps a new event of type t.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{ID: uuid.New(), EventType: t, EventTime: time.Now()}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// TradeEvent describes the end of a buy or sell workflow.
type TradeEvent struct {
	BaseEvent
	Mint      string
	Pool      string
	Side      string // "buy" or "sell"
	Tranche   string
	Reason    string // skip reason or exit trigger
	Signature string
	AmountIn  uint64
	QuotedOut uint64
	Attempts  int
	Error     string
}

// PoolDetectedEvent is emitted when a new pool is handed to the buy workflow.
type PoolDetectedEvent struct {
	BaseEvent
	Pool     string
	Mint     string
	OpenTime time.Time
}
