// internal/position/gate.go
package position

import "sync"

// Gate enforces the single-position rule: in single-position mode a buy may
// start only while no other buy holds the gate and no sell is running.
// Sells never wait on the gate; they only register themselves so that new
// buys back off until every sell has drained.
type Gate struct {
	single bool

	mu          sync.Mutex
	held        bool
	activeSells int
}

// NewGate creates a gate. With single=false every buy is admitted.
func NewGate(single bool) *Gate {
	return &Gate{single: single}
}

// TryAcquireBuy reports whether a buy may proceed. It never blocks.
func (g *Gate) TryAcquireBuy() bool {
	if !g.single {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held || g.activeSells > 0 {
		return false
	}
	g.held = true
	return true
}

// Release frees the buy lock taken by TryAcquireBuy. It is a no-op when
// single-position mode is off. Releasing a free lock panics.
func (g *Gate) Release() {
	if !g.single {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		panic("position: release of a free buy gate")
	}
	g.held = false
}

// EnterSell registers a running sell.
func (g *Gate) EnterSell() {
	g.mu.Lock()
	g.activeSells++
	g.mu.Unlock()
}

// ExitSell unregisters a running sell.
func (g *Gate) ExitSell() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.activeSells == 0 {
		panic("position: sell exit without matching enter")
	}
	g.activeSells--
}

// GateState is a point-in-time view of the gate.
type GateState struct {
	SinglePosition bool `json:"single_position"`
	Held           bool `json:"held"`
	ActiveSells    int  `json:"active_sells"`
}

// State returns a snapshot for status reporting.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GateState{SinglePosition: g.single, Held: g.held, ActiveSells: g.activeSells}
}
