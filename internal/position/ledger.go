// internal/position/ledger.go
package position

import "sync"

// Tranche identifies one of the two staged take-profit exits.
type Tranche int

const (
	TrancheFirst Tranche = iota + 1
	TrancheSecond
)

func (t Tranche) String() string {
	switch t {
	case TrancheFirst:
		return "first"
	case TrancheSecond:
		return "second"
	default:
		return "none"
	}
}

// Classification tells a sell which tranche it is working on.
type Classification struct {
	Tranche       Tranche
	GainTargetPct float64
	SellPct       float64
}

// EntryState is the per-mint exit record.
type EntryState struct {
	SoldFirst  bool    `json:"sold_first"`
	SoldSecond bool    `json:"sold_second"`
	InFlight   Tranche `json:"in_flight,omitempty"`
}

// Ledger records which tranches of each mint have been sold. Entries live
// for the lifetime of the ledger and are never cleared.
type Ledger struct {
	first  TakeProfit
	second TakeProfit

	mu      sync.Mutex
	entries map[string]*EntryState
}

// NewLedger creates a ledger for the given tranche parameters.
func NewLedger(first, second TakeProfit) *Ledger {
	return &Ledger{
		first:   first,
		second:  second,
		entries: make(map[string]*EntryState),
	}
}

// Classify returns the tranche the next sell of mint should target. The
// boolean is false once both tranches have been sold.
func (l *Ledger) Classify(mint string) (Classification, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[mint]
	switch {
	case e == nil || !e.SoldFirst:
		return Classification{Tranche: TrancheFirst, GainTargetPct: l.first.AfterGainPct, SellPct: l.first.SellPct}, true
	case !e.SoldSecond:
		return Classification{Tranche: TrancheSecond, GainTargetPct: l.second.AfterGainPct, SellPct: l.second.SellPct}, true
	default:
		return Classification{}, false
	}
}

// Claim reserves tranche t of mint for one exit attempt. Only one exit per
// mint may be in flight, the tranche must not be sold yet, and the second
// tranche requires the first to be sold.
func (l *Ledger) Claim(mint string, t Tranche) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entry(mint)
	if e.InFlight != 0 || !l.eligible(e, t) {
		return false
	}
	e.InFlight = t
	return true
}

// Unclaim drops a claim without recording a sale.
func (l *Ledger) Unclaim(mint string, t Tranche) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[mint]; ok && e.InFlight == t {
		e.InFlight = 0
	}
}

// MarkSold records a confirmed exit of tranche t. It returns false if the
// tranche was already sold or is out of order; the ledger is then unchanged
// apart from clearing a matching claim.
func (l *Ledger) MarkSold(mint string, t Tranche) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entry(mint)
	if e.InFlight == t {
		e.InFlight = 0
	}
	if !l.eligible(e, t) {
		return false
	}
	if t == TrancheFirst {
		e.SoldFirst = true
	} else {
		e.SoldSecond = true
	}
	return true
}

// Entry returns the record for mint.
func (l *Ledger) Entry(mint string) EntryState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[mint]; ok {
		return *e
	}
	return EntryState{}
}

// Snapshot copies every record.
func (l *Ledger) Snapshot() map[string]EntryState {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]EntryState, len(l.entries))
	for mint, e := range l.entries {
		out[mint] = *e
	}
	return out
}

func (l *Ledger) entry(mint string) *EntryState {
	e, ok := l.entries[mint]
	if !ok {
		e = &EntryState{}
		l.entries[mint] = e
	}
	return e
}

func (l *Ledger) eligible(e *EntryState, t Tranche) bool {
	switch t {
	case TrancheFirst:
		return !e.SoldFirst
	case TrancheSecond:
		return e.SoldFirst && !e.SoldSecond
	default:
		return false
	}
}
