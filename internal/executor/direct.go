// internal/executor/direct.go
package executor

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/wallet"
)

// Direct sends exactly one transaction and reports its outcome.
type Direct struct {
	client ChainClient
	logger *zap.Logger
}

func NewDirect(client ChainClient, logger *zap.Logger) *Direct {
	return &Direct{client: client, logger: logger.Named("executor")}
}

func (d *Direct) ExecuteAndConfirm(ctx context.Context, tx *solana.Transaction, _ *wallet.Wallet, bh blockchain.Blockhash, _ uint64) (*Outcome, error) {
	d.logger.Debug("Executing transaction")
	return sendAndConfirm(ctx, d.client, tx, bh)
}

func (d *Direct) SupportsFee() bool { return false }
