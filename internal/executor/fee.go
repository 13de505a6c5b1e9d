// internal/executor/fee.go
package executor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/metrics"
	"github.com/rovshanmuradov/raydium-sniper/internal/wallet"
)

// FeeSkimming sends the primary transaction and then, whatever its outcome,
// one transfer of the fee to a fixed recipient. Only the primary outcome is
// returned; the transfer is never retried here.
type FeeSkimming struct {
	client    ChainClient
	feeWallet solana.PublicKey
	quoteMint solana.PublicKey
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewFeeSkimming(client ChainClient, feeWallet, quoteMint solana.PublicKey, m *metrics.Metrics, logger *zap.Logger) *FeeSkimming {
	return &FeeSkimming{
		client:    client,
		feeWallet: feeWallet,
		quoteMint: quoteMint,
		metrics:   m,
		logger:    logger.Named("fee-executor"),
	}
}

func (f *FeeSkimming) SupportsFee() bool { return true }

// ExecuteAndConfirm submits tx and, once it lands, transfers fee lamports to
// the fee wallet. A zero fee sends no transfer.
func (f *FeeSkimming) ExecuteAndConfirm(ctx context.Context, tx *solana.Transaction, payer *wallet.Wallet, bh blockchain.Blockhash, fee uint64) (*Outcome, error) {
	outcome, err := sendAndConfirm(ctx, f.client, tx, bh)
	if outcome == nil {
		// Nothing was submitted.
		return nil, err
	}

	if fee > 0 {
		f.transferFee(ctx, payer, fee)
	}
	return outcome, err
}

func (f *FeeSkimming) transferFee(ctx context.Context, payer *wallet.Wallet, fee uint64) {
	log := f.logger.With(
		zap.String("recipient", f.feeWallet.String()),
		zap.Uint64("fee", fee))

	instructions, err := f.feeInstructions(payer, fee)
	if err != nil {
		log.Error("Failed to build fee transfer", zap.Error(err))
		f.metrics.FeeTransfer("error")
		return
	}

	bh, err := f.client.GetLatestBlockhash(ctx)
	if err != nil {
		log.Error("Failed to get blockhash for fee transfer", zap.Error(err))
		f.metrics.FeeTransfer("error")
		return
	}

	tx, err := solana.NewTransaction(instructions, bh.Hash, solana.TransactionPayer(payer.PublicKey))
	if err != nil {
		log.Error("Failed to create fee transaction", zap.Error(err))
		f.metrics.FeeTransfer("error")
		return
	}
	if err := payer.SignTransaction(tx); err != nil {
		log.Error("Failed to sign fee transaction", zap.Error(err))
		f.metrics.FeeTransfer("error")
		return
	}

	outcome, err := sendAndConfirm(ctx, f.client, tx, *bh)
	switch {
	case err != nil:
		log.Warn("Fee transfer failed", zap.Error(err))
		f.metrics.FeeTransfer("error")
	case outcome.Confirmed:
		log.Info("Fee transfer confirmed", zap.String("signature", outcome.Signature.String()))
		f.metrics.FeeTransfer("confirmed")
	default:
		log.Warn("Fee transfer not confirmed",
			zap.String("signature", outcome.Signature.String()),
			zap.Error(outcome.Err))
		f.metrics.FeeTransfer("unconfirmed")
	}
}

// feeInstructions moves fee native lamports when the quote token is wrapped
// SOL, and quote tokens from the payer's ATA otherwise.
func (f *FeeSkimming) feeInstructions(payer *wallet.Wallet, fee uint64) ([]solana.Instruction, error) {
	if f.quoteMint.IsZero() || f.quoteMint.Equals(solana.SolMint) {
		return []solana.Instruction{
			system.NewTransferInstruction(fee, payer.PublicKey, f.feeWallet).Build(),
		}, nil
	}

	source, err := payer.GetATA(f.quoteMint)
	if err != nil {
		return nil, fmt.Errorf("payer quote ata: %w", err)
	}
	dest, _, err := solana.FindAssociatedTokenAddress(f.feeWallet, f.quoteMint)
	if err != nil {
		return nil, fmt.Errorf("recipient quote ata: %w", err)
	}
	return []solana.Instruction{
		wallet.CreateAssociatedTokenAccountIdempotentInstruction(payer.PublicKey, dest, f.feeWallet, f.quoteMint),
		token.NewTransferInstruction(fee, source, dest, payer.PublicKey, nil).Build(),
	}, nil
}
