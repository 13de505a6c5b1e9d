// internal/position/types.go
package position

import (
	"math/big"
	"strconv"
)

// TakeProfit describes one staged exit: sell SellPct of the balance once
// proceeds exceed the entry by AfterGainPct.
type TakeProfit struct {
	AfterGainPct float64
	SellPct      float64
}

// Thresholds holds the exit rules shared by every position.
type Thresholds struct {
	// StopLossPct of zero disables stop-loss.
	StopLossPct       float64
	TakeProfitEnabled bool
	First             TakeProfit
	Second            TakeProfit
	FeeOnProfitPct    float64
}

// PercentOf returns floor(amount * pct / 100).
func PercentOf(amount uint64, pct float64) uint64 {
	if amount == 0 || pct <= 0 {
		return 0
	}
	// Shortest decimal form: 33.3 is 333/10.
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(pct, 'f', -1, 64))
	if !ok {
		return 0
	}
	r.Mul(r, new(big.Rat).SetInt(new(big.Int).SetUint64(amount)))
	r.Quo(r, big.NewRat(100, 1))
	out := new(big.Int).Quo(r.Num(), r.Denom())
	if !out.IsUint64() {
		return ^uint64(0)
	}
	return out.Uint64()
}
