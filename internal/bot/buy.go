// internal/bot/buy.go
package bot

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/events"
	"github.com/rovshanmuradov/raydium-sniper/internal/executor"
)

// Skip reasons, also used as metric labels.
const (
	skipBusy      = "busy"
	skipRiskScore = "risk_score"
	skipFilters   = "filters"
	skipSnipeList = "not_in_snipe_list"
	skipLookup    = "lookup_failed"
	skipCancelled = "cancelled"
	skipFullyExit = "fully_exited"
	skipEmpty     = "empty_balance"
	skipNoPool    = "pool_not_found"
	skipNoMatch   = "no_match"
	skipInFlight  = "exit_in_flight"
)

// Buy runs the buy workflow for a newly opened pool.
func (b *Bot) Buy(ctx context.Context, poolID solana.PublicKey, state *raydium.LiquidityStateV4) {
	mint := state.BaseMint.String()
	log := b.logger.With(zap.String("mint", mint))
	log.Debug("Processing new pool...", zap.String("pool", poolID.String()))

	b.publish(&events.PoolDetectedEvent{
		BaseEvent: events.NewBase(events.PoolDetected),
		Pool:      poolID.String(),
		Mint:      mint,
		OpenTime:  time.Unix(int64(state.PoolOpenTime), 0),
	})

	if !b.gate.TryAcquireBuy() {
		log.Debug("Skipping buy because one token at a time is turned on and token is already being processed")
		b.skipBuy(mint, poolID, skipBusy)
		return
	}
	defer b.gate.Release()
	defer b.recoverWorkflow(log, "buy")

	if b.cfg.RiskCheck && b.deps.Risk != nil {
		report, err := b.deps.Risk.Fetch(ctx, mint)
		switch {
		case err != nil:
			log.Info("Error fetching risk report, ignoring risk threshold check", zap.Error(err))
		case report.Score > b.cfg.MaxRiskScore:
			log.Debug("Skipping buy because token has a high risk score", zap.Float64("score", report.Score))
			b.skipBuy(mint, poolID, skipRiskScore)
			return
		default:
			log.Debug("Risk score is ok, continuing", zap.Float64("score", report.Score))
		}
	}

	keys, mintATA, err := b.resolveBuy(ctx, poolID, state)
	if err != nil {
		log.Error("Failed to buy token", zap.Error(err))
		b.skipBuy(mint, poolID, skipLookup)
		return
	}

	if b.deps.SnipeList != nil {
		if !b.deps.SnipeList.Contains(mint) {
			log.Debug("Skipping buy because token is not in the snipe list")
			b.skipBuy(mint, poolID, skipSnipeList)
			return
		}
	} else if b.deps.Filters != nil && !b.deps.Filters.Execute(ctx, keys) {
		log.Debug("Skipping buy because pool doesn't match filters")
		b.skipBuy(mint, poolID, skipFilters)
		return
	}

	if b.cfg.BuyDelay > 0 {
		log.Debug("Waiting before buy", zap.Duration("delay", b.cfg.BuyDelay))
		if err := sleep(ctx, b.cfg.BuyDelay); err != nil {
			b.skipBuy(mint, poolID, skipCancelled)
			return
		}
	}

	log.Info("Processing buy...")
	res := b.submit(ctx, "buy", b.cfg.MaxBuyRetries, log, func(ctx context.Context) (*executor.Outcome, error) {
		return b.swap(ctx, swapRequest{
			keys:      keys,
			direction: raydium.DirectionBuy,
			source:    b.quoteATA,
			dest:      mintATA,
			amountIn:  b.cfg.QuoteAmount,
			slippage:  b.cfg.BuySlippage,
		})
	})

	ev := &events.TradeEvent{
		Mint:     mint,
		Pool:     poolID.String(),
		Side:     "buy",
		AmountIn: b.cfg.QuoteAmount,
		Attempts: res.Attempts,
	}
	if res.Outcome != nil {
		ev.Signature = res.Outcome.Signature.String()
	}

	if res.confirmed() {
		log.Info("Confirmed buy tx",
			zap.String("signature", ev.Signature),
			zap.String("url", "https://solscan.io/tx/"+ev.Signature))
		b.deps.Metrics.TradeConfirmed("buy")
		ev.BaseEvent = events.NewBase(events.BuyConfirmed)
		b.publish(ev)
		return
	}

	log.Warn("Failed to buy token", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
	b.deps.Metrics.TradeFailed("buy")
	ev.BaseEvent = events.NewBase(events.BuyFailed)
	ev.Error = errString(res)
	b.publish(ev)
}

// resolveBuy looks up the market and derives the base token account in
// parallel, then assembles the pool keys.
func (b *Bot) resolveBuy(ctx context.Context, poolID solana.PublicKey, state *raydium.LiquidityStateV4) (*raydium.PoolKeys, solana.PublicKey, error) {
	var (
		market  raydium.MarketKeys
		mintATA solana.PublicKey
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		market, err = b.deps.Markets.Get(gctx, state.MarketID.String())
		return err
	})
	g.Go(func() error {
		var err error
		mintATA, err = b.wallet.GetATA(state.BaseMint)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, solana.PublicKey{}, err
	}

	keys, err := raydium.NewPoolKeys(poolID, state, market)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	return keys, mintATA, nil
}

func (b *Bot) skipBuy(mint string, poolID solana.PublicKey, reason string) {
	b.deps.Metrics.BuySkipped(reason)
	b.publish(&events.TradeEvent{
		BaseEvent: events.NewBase(events.BuySkipped),
		Mint:      mint,
		Pool:      poolID.String(),
		Side:      "buy",
		Reason:    reason,
	})
}

func errString(res submitResult) string {
	switch {
	case res.Outcome != nil && res.Outcome.Err != nil:
		return res.Outcome.Err.Error()
	case res.Err != nil:
		return res.Err.Error()
	default:
		return ""
	}
}
