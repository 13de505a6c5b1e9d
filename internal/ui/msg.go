package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rovshanmuradov/raydium-sniper/internal/events"
)

// TradeMsg carries a trade lifecycle event from the bus.
type TradeMsg struct {
	Event *events.TradeEvent
}

// PoolMsg carries a newly detected pool.
type PoolMsg struct {
	Event *events.PoolDetectedEvent
}

// tickMsg refreshes the state panes.
type tickMsg time.Time

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// waitFor returns the next message of the feed, or nil once it is closed.
func waitFor(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
