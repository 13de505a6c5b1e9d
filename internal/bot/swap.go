// internal/bot/swap.go
package bot

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/executor"
	"github.com/rovshanmuradov/raydium-sniper/internal/wallet"
)

// swapRequest describes one swap transaction.
type swapRequest struct {
	keys      *raydium.PoolKeys
	direction raydium.Direction
	source    solana.PublicKey
	dest      solana.PublicKey
	amountIn  uint64
	slippage  float64
	// closeSource closes the base token account after a sell of the whole balance.
	closeSource bool
	fee         uint64
}

// swap quotes, builds, signs and submits one swap.
func (b *Bot) swap(ctx context.Context, req swapRequest) (*executor.Outcome, error) {
	quote, err := b.deps.Quoter.ComputeAmountOut(ctx, req.keys, req.amountIn, req.direction, req.slippage)
	if err != nil {
		return nil, fmt.Errorf("compute amount out: %w", err)
	}

	bh, err := b.deps.Client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		b.instructions(req, quote.MinAmountOut),
		bh.Hash,
		solana.TransactionPayer(b.wallet.PublicKey),
	)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	if err := b.wallet.SignTransaction(tx); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	return b.deps.Executor.ExecuteAndConfirm(ctx, tx, b.wallet, *bh, req.fee)
}

// instructions lays out a swap transaction:
//
//	buy:  [compute budget] create base ATA (idempotent), swap
//	sell: [compute budget] swap, [close base ATA]
func (b *Bot) instructions(req swapRequest, minAmountOut uint64) []solana.Instruction {
	instructions := b.computeBudget()

	if req.direction == raydium.DirectionBuy {
		instructions = append(instructions, wallet.CreateAssociatedTokenAccountIdempotentInstruction(
			b.wallet.PublicKey, req.dest, b.wallet.PublicKey, req.keys.BaseMint))
	}

	instructions = append(instructions, raydium.SwapBaseIn(raydium.SwapParams{
		Keys:            req.keys,
		AmountIn:        req.amountIn,
		MinAmountOut:    minAmountOut,
		UserSource:      req.source,
		UserDestination: req.dest,
		Owner:           b.wallet.PublicKey,
	}))

	if req.direction == raydium.DirectionSell && req.closeSource {
		instructions = append(instructions, b.wallet.CloseAccountInstruction(req.source))
	}
	return instructions
}

// computeBudget returns the priority fee instructions, or none when custom
// tips are off.
func (b *Bot) computeBudget() []solana.Instruction {
	if !b.cfg.SetCustomTips {
		return nil
	}

	var instructions []solana.Instruction
	if b.cfg.ComputeUnitPrice > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitPriceInstruction(b.cfg.ComputeUnitPrice).Build())
	}
	if b.cfg.ComputeUnitLimit > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitLimitInstruction(b.cfg.ComputeUnitLimit).Build())
	}
	return instructions
}
