// internal/position/matcher.go
package position

import (
	"context"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

// Action is the outcome kind of a price check.
type Action int

const (
	NoSell Action = iota
	SellStopLoss
	SellTakeProfit
)

func (a Action) String() string {
	switch a {
	case SellStopLoss:
		return "stop_loss"
	case SellTakeProfit:
		return "take_profit"
	default:
		return "no_sell"
	}
}

// Match is the result of one price check. QuotedOut is set for both sell
// actions, Profit only for SellTakeProfit.
type Match struct {
	Action    Action
	QuotedOut uint64
	Profit    uint64
}

// Quoter prices a swap against a pool.
type Quoter interface {
	ComputeAmountOut(ctx context.Context, keys *raydium.PoolKeys, amountIn uint64, dir raydium.Direction, slippagePct float64) (*raydium.Quote, error)
}

// Matcher decides whether a held position should be sold now.
type Matcher struct {
	quoter      Quoter
	thresholds  Thresholds
	entryAmount uint64
	slippagePct float64
	logger      *zap.Logger
}

// NewMatcher creates a matcher. entryAmount is the quote amount spent per buy.
func NewMatcher(quoter Quoter, thresholds Thresholds, entryAmount uint64, slippagePct float64, logger *zap.Logger) *Matcher {
	return &Matcher{
		quoter:      quoter,
		thresholds:  thresholds,
		entryAmount: entryAmount,
		slippagePct: slippagePct,
		logger:      logger.Named("price-matcher"),
	}
}

// Evaluate quotes selling amountIn and compares the proceeds with the
// stop-loss and take-profit targets. A failed quote yields NoSell.
func (m *Matcher) Evaluate(ctx context.Context, amountIn uint64, keys *raydium.PoolKeys, gainTargetPct float64) Match {
	quote, err := m.quoter.ComputeAmountOut(ctx, keys, amountIn, raydium.DirectionSell, m.slippagePct)
	if err != nil {
		m.logger.Debug("Failed to check token price",
			zap.String("mint", keys.BaseMint.String()),
			zap.Error(err))
		return Match{Action: NoSell}
	}

	match := Decide(quote.AmountOut, m.entryAmount, gainTargetPct, m.thresholds)
	m.logger.Debug("Price check",
		zap.String("mint", keys.BaseMint.String()),
		zap.Uint64("take_profit", TakeProfitLevel(m.entryAmount, gainTargetPct)),
		zap.Uint64("stop_loss", StopLossLevel(m.entryAmount, m.thresholds.StopLossPct)),
		zap.Uint64("current", quote.AmountOut),
		zap.Stringer("action", match.Action))
	return match
}

// Decide applies the exit rules to quotedOut. Stop-loss is checked first and
// both comparisons are strict.
func Decide(quotedOut, entryAmount uint64, gainTargetPct float64, th Thresholds) Match {
	takeProfit := TakeProfitLevel(entryAmount, gainTargetPct)
	stopLoss := StopLossLevel(entryAmount, th.StopLossPct)

	if th.StopLossPct > 0 && quotedOut < stopLoss {
		return Match{Action: SellStopLoss, QuotedOut: quotedOut}
	}
	if th.TakeProfitEnabled && quotedOut > takeProfit {
		return Match{Action: SellTakeProfit, QuotedOut: quotedOut, Profit: quotedOut - entryAmount}
	}
	return Match{Action: NoSell}
}

// TakeProfitLevel is the quote a position must exceed to take profit.
func TakeProfitLevel(entryAmount uint64, gainTargetPct float64) uint64 {
	return entryAmount + PercentOf(entryAmount, gainTargetPct)
}

// StopLossLevel is the quote below which a position is stopped out. A loss of
// 100% or more floors the level at zero.
func StopLossLevel(entryAmount uint64, stopLossPct float64) uint64 {
	loss := PercentOf(entryAmount, stopLossPct)
	if loss >= entryAmount {
		return 0
	}
	return entryAmount - loss
}
