// internal/bot/sell.go
package bot

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/cache"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/events"
	"github.com/rovshanmuradov/raydium-sniper/internal/executor"
	"github.com/rovshanmuradov/raydium-sniper/internal/position"
)

// Sell runs the exit workflow for a changed token account of the wallet.
func (b *Bot) Sell(ctx context.Context, accountID solana.PublicKey, account token.Account) {
	mint := account.Mint.String()
	log := b.logger.With(zap.String("mint", mint))

	b.gate.EnterSell()
	b.deps.Metrics.SellStarted()
	defer func() {
		b.gate.ExitSell()
		b.deps.Metrics.SellFinished()
	}()
	defer b.recoverWorkflow(log, "sell")

	class, ok := b.ledger.Classify(mint)
	if !ok {
		log.Debug("Skipping sell because token was sold after gain twice")
		b.skipSell(mint, "", skipFullyExit)
		return
	}
	tranche := class.Tranche.String()
	log = log.With(zap.String("tranche", tranche))
	log.Debug("Processing new token...")

	amountIn := position.PercentOf(account.Amount, class.SellPct)
	if amountIn == 0 {
		log.Info("Empty balance, can't sell")
		b.skipSell(mint, tranche, skipEmpty)
		return
	}

	if b.cfg.SellDelay > 0 {
		log.Debug("Waiting before sell", zap.Duration("delay", b.cfg.SellDelay))
		if err := sleep(ctx, b.cfg.SellDelay); err != nil {
			b.skipSell(mint, tranche, skipCancelled)
			return
		}
	}

	keys, err := b.resolveSell(ctx, mint)
	if err != nil {
		log.Debug("Token pool data is not found, can't sell", zap.Error(err))
		b.skipSell(mint, tranche, skipNoPool)
		return
	}

	match := b.matcher.Evaluate(ctx, amountIn, keys, class.GainTargetPct)
	b.deps.Metrics.PriceCheck(match.Action.String())
	if match.Action == position.NoSell {
		log.Info("Price doesn't match, skipping sell...")
		b.skipSell(mint, tranche, skipNoMatch)
		return
	}

	// One exit per mint at a time: a concurrent completion must not mark the
	// same tranche twice.
	if !b.ledger.Claim(mint, class.Tranche) {
		log.Debug("Skipping sell because an exit of this token is already in flight")
		b.skipSell(mint, tranche, skipInFlight)
		return
	}
	defer b.ledger.Unclaim(mint, class.Tranche)

	var fee uint64
	if match.Action == position.SellTakeProfit && b.deps.Executor.SupportsFee() {
		fee = position.PercentOf(match.Profit, b.cfg.Thresholds.FeeOnProfitPct)
		log.Debug("Calculated fee for take profit", zap.Uint64("profit", match.Profit), zap.Uint64("fee", fee))
	}

	log.Info("Matched the price, executing sale...",
		zap.String("reason", match.Action.String()),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("quoted_out", match.QuotedOut))

	res := b.submit(ctx, "sell", b.cfg.MaxSellRetries, log, func(ctx context.Context) (*executor.Outcome, error) {
		return b.swap(ctx, swapRequest{
			keys:        keys,
			direction:   raydium.DirectionSell,
			source:      accountID,
			dest:        b.quoteATA,
			amountIn:    amountIn,
			slippage:    b.cfg.SellSlippage,
			closeSource: amountIn == account.Amount,
			fee:         fee,
		})
	})

	ev := &events.TradeEvent{
		Mint:      mint,
		Pool:      keys.ID.String(),
		Side:      "sell",
		Tranche:   tranche,
		Reason:    match.Action.String(),
		AmountIn:  amountIn,
		QuotedOut: match.QuotedOut,
		Attempts:  res.Attempts,
	}
	if res.Outcome != nil {
		ev.Signature = res.Outcome.Signature.String()
	}

	if res.confirmed() {
		b.ledger.MarkSold(mint, class.Tranche)
		log.Info("Confirmed sell tx",
			zap.String("signature", ev.Signature),
			zap.String("url", "https://solscan.io/tx/"+ev.Signature),
			zap.String("dex", "https://dexscreener.com/solana/"+mint+"?maker="+b.wallet.PublicKey.String()))
		b.deps.Metrics.TradeConfirmed("sell")
		b.deps.Metrics.Exit(match.Action.String(), tranche)
		ev.BaseEvent = events.NewBase(events.SellConfirmed)
		b.publish(ev)
		return
	}

	log.Warn("Failed to sell token", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
	b.deps.Metrics.TradeFailed("sell")
	ev.BaseEvent = events.NewBase(events.SellFailed)
	ev.Error = errString(res)
	b.publish(ev)
}

// resolveSell rebuilds the pool keys of a held mint from the caches.
func (b *Bot) resolveSell(ctx context.Context, mint string) (*raydium.PoolKeys, error) {
	pool, ok := b.deps.Pools.Get(mint)
	if !ok {
		return nil, cache.ErrPoolNotFound
	}
	poolID, err := solana.PublicKeyFromBase58(pool.ID)
	if err != nil {
		return nil, err
	}
	market, err := b.deps.Markets.Get(ctx, pool.State.MarketID.String())
	if err != nil {
		return nil, err
	}
	return raydium.NewPoolKeys(poolID, pool.State, market)
}

func (b *Bot) skipSell(mint, tranche, reason string) {
	b.publish(&events.TradeEvent{
		BaseEvent: events.NewBase(events.SellSkipped),
		Mint:      mint,
		Side:      "sell",
		Tranche:   tranche,
		Reason:    reason,
	})
}
