// internal/executor/executor.go
package executor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/metrics"
	"github.com/rovshanmuradov/raydium-sniper/internal/wallet"
)

// Kind selects an executor implementation.
type Kind string

const (
	KindDefault Kind = "default"
	KindFee     Kind = "fee"
)

// Outcome is the result of one submitted transaction. Confirmed=false with a
// nil Err means the transaction was not confirmed within its blockhash window.
type Outcome struct {
	Confirmed bool
	Signature solana.Signature
	Err       error
}

// ChainClient is the chain access an executor needs.
type ChainClient interface {
	GetLatestBlockhash(ctx context.Context) (*blockchain.Blockhash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	ConfirmTransaction(ctx context.Context, sig solana.Signature, bh blockchain.Blockhash) (*blockchain.Confirmation, error)
}

// Executor submits a signed transaction and waits for its confirmation.
// fee is the amount to skim after the transaction; executors that do not
// skim fees ignore it.
type Executor interface {
	ExecuteAndConfirm(ctx context.Context, tx *solana.Transaction, payer *wallet.Wallet, bh blockchain.Blockhash, fee uint64) (*Outcome, error)
	// SupportsFee reports whether the executor transfers a fee after the transaction.
	SupportsFee() bool
}

// Config selects and configures the executor built at startup.
type Config struct {
	Kind      Kind
	FeeWallet solana.PublicKey
	QuoteMint solana.PublicKey
}

// New builds the executor selected by cfg.Kind.
func New(cfg Config, client ChainClient, m *metrics.Metrics, logger *zap.Logger) (Executor, error) {
	switch cfg.Kind {
	case KindDefault, "":
		return NewDirect(client, logger), nil
	case KindFee:
		if cfg.FeeWallet.IsZero() {
			return nil, fmt.Errorf("fee executor requires a fee wallet")
		}
		return NewFeeSkimming(client, cfg.FeeWallet, cfg.QuoteMint, m, logger), nil
	default:
		return nil, fmt.Errorf("unknown executor %q", cfg.Kind)
	}
}

// sendAndConfirm is shared by both executors.
func sendAndConfirm(ctx context.Context, client ChainClient, tx *solana.Transaction, bh blockchain.Blockhash) (*Outcome, error) {
	sig, err := client.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	conf, err := client.ConfirmTransaction(ctx, sig, bh)
	if err != nil {
		return &Outcome{Signature: sig}, fmt.Errorf("confirm transaction %s: %w", sig, err)
	}
	return &Outcome{Confirmed: conf.Confirmed, Signature: sig, Err: conf.Err}, nil
}
