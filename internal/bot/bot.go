// internal/bot/bot.go
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
	"github.com/rovshanmuradov/raydium-sniper/internal/cache"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/events"
	"github.com/rovshanmuradov/raydium-sniper/internal/executor"
	"github.com/rovshanmuradov/raydium-sniper/internal/metrics"
	"github.com/rovshanmuradov/raydium-sniper/internal/position"
	"github.com/rovshanmuradov/raydium-sniper/internal/risk"
	"github.com/rovshanmuradov/raydium-sniper/internal/wallet"
)

// Config holds the trading parameters of the controller.
type Config struct {
	QuoteMint   solana.PublicKey
	QuoteSymbol string
	// QuoteAmount is the raw quote amount spent on every buy and the entry
	// amount exits are measured against.
	QuoteAmount uint64

	SinglePosition bool
	MaxBuyRetries  int
	MaxSellRetries int
	BuySlippage    float64
	SellSlippage   float64
	BuyDelay       time.Duration
	SellDelay      time.Duration

	Thresholds position.Thresholds

	SetCustomTips    bool
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64

	RiskCheck    bool
	MaxRiskScore float64
}

// ChainClient is the chain access the controller needs directly.
type ChainClient interface {
	GetLatestBlockhash(ctx context.Context) (*blockchain.Blockhash, error)
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// MarketLookup resolves OpenBook market keys.
type MarketLookup interface {
	Get(ctx context.Context, id string) (raydium.MarketKeys, error)
}

// PoolLookup resolves the pool a mint was bought in.
type PoolLookup interface {
	Get(mint string) (cache.PoolRecord, bool)
}

// PoolFilter decides whether a new pool is worth buying.
type PoolFilter interface {
	Execute(ctx context.Context, keys *raydium.PoolKeys) bool
}

// RiskProvider scores a mint; higher is riskier.
type RiskProvider interface {
	Fetch(ctx context.Context, mint string) (*risk.Report, error)
}

// AllowList restricts buys to listed mints.
type AllowList interface {
	Contains(mint string) bool
}

// Deps are the collaborators of the controller. Filters, Risk, SnipeList,
// Events and Metrics may be nil.
type Deps struct {
	Client    ChainClient
	Markets   MarketLookup
	Pools     PoolLookup
	Filters   PoolFilter
	Risk      RiskProvider
	SnipeList AllowList
	Quoter    position.Quoter
	Executor  executor.Executor
	Events    events.Publisher
	Metrics   *metrics.Metrics
}

// Bot buys new pools and exits positions through staged take-profit and
// stop-loss. Buy and Sell never return errors: every failure ends the
// workflow with a log line, an event and a metric.
type Bot struct {
	cfg    Config
	wallet *wallet.Wallet
	deps   Deps

	quoteATA solana.PublicKey
	gate     *position.Gate
	ledger   *position.Ledger
	matcher  *position.Matcher
	logger   *zap.Logger
}

// New creates the controller.
func New(cfg Config, w *wallet.Wallet, deps Deps, logger *zap.Logger) (*Bot, error) {
	if deps.Client == nil || deps.Markets == nil || deps.Pools == nil || deps.Quoter == nil || deps.Executor == nil {
		return nil, fmt.Errorf("bot: missing required dependency")
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}

	quoteATA, err := w.GetATA(cfg.QuoteMint)
	if err != nil {
		return nil, fmt.Errorf("quote ata: %w", err)
	}

	logger = logger.Named("bot")
	return &Bot{
		cfg:      cfg,
		wallet:   w,
		deps:     deps,
		quoteATA: quoteATA,
		gate:     position.NewGate(cfg.SinglePosition),
		ledger:   position.NewLedger(cfg.Thresholds.First, cfg.Thresholds.Second),
		matcher:  position.NewMatcher(deps.Quoter, cfg.Thresholds, cfg.QuoteAmount, cfg.SellSlippage, logger),
		logger:   logger,
	}, nil
}

// Validate checks that the wallet holds a quote token account.
func (b *Bot) Validate(ctx context.Context) bool {
	info, err := b.deps.Client.GetAccountInfo(ctx, b.quoteATA)
	if err != nil || info == nil || info.Value == nil {
		b.logger.Error(fmt.Sprintf("%s token account not found in wallet", b.cfg.QuoteSymbol),
			zap.String("wallet", b.wallet.PublicKey.String()),
			zap.String("ata", b.quoteATA.String()),
			zap.Error(err))
		return false
	}
	return true
}

// Gate exposes the position gate for status reporting.
func (b *Bot) Gate() *position.Gate { return b.gate }

// Ledger exposes the exit ledger for status reporting.
func (b *Bot) Ledger() *position.Ledger { return b.ledger }

// QuoteATA is the wallet's quote token account.
func (b *Bot) QuoteATA() solana.PublicKey { return b.quoteATA }

func (b *Bot) publish(e events.Event) {
	if err := b.deps.Events.Publish(e); err != nil {
		b.logger.Debug("Failed to publish event",
			zap.String("event_type", string(e.Type())),
			zap.Error(err))
	}
}

// recoverWorkflow turns a panic in a workflow into a logged failure. It must
// be deferred directly.
func (b *Bot) recoverWorkflow(log *zap.Logger, side string) {
	if r := recover(); r != nil {
		log.Error("Workflow panicked",
			zap.String("side", side),
			zap.Any("panic", r),
			zap.Stack("stack"))
		b.deps.Metrics.TradeFailed(side)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
