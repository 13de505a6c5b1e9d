// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain/solbc"
	"github.com/rovshanmuradov/raydium-sniper/internal/cache"
	"github.com/rovshanmuradov/raydium-sniper/internal/cache/redis"
	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/events"
	"github.com/rovshanmuradov/raydium-sniper/internal/executor"
	"github.com/rovshanmuradov/raydium-sniper/internal/export"
	"github.com/rovshanmuradov/raydium-sniper/internal/filter"
	"github.com/rovshanmuradov/raydium-sniper/internal/license"
	"github.com/rovshanmuradov/raydium-sniper/internal/listener"
	"github.com/rovshanmuradov/raydium-sniper/internal/metrics"
	"github.com/rovshanmuradov/raydium-sniper/internal/risk"
	"github.com/rovshanmuradov/raydium-sniper/internal/server"
	"github.com/rovshanmuradov/raydium-sniper/internal/snipelist"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/postgres"
	"github.com/rovshanmuradov/raydium-sniper/internal/wallet"
)

// ErrInvalidWallet is returned by Run when the wallet has no quote token account.
var ErrInvalidWallet = errors.New("wallet validation failed")

const (
	eventBusBuffer     = 1024
	memoryJournalSize  = 500
	licenseHeartbeat   = "@every 1h"
	shutdownTimeout    = 10 * time.Second
	workflowDrainLimit = 30 * time.Second
	reportTradeLimit   = 10000
)

// Runner wires the controller to the chain, the caches and the ops surface.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger

	quote    config.QuoteToken
	wallet   *wallet.Wallet
	bot      *Bot
	markets  *cache.MarketCache
	pools    *cache.PoolCache
	listener *listener.Listener
	bus      *events.Bus
	registry *prometheus.Registry
	journal  storage.Journal
	server   *server.Server
	snipe    *snipelist.List
	license  *license.Validator

	// runTimestamp filters out pools opened before startup.
	runTimestamp uint64

	buy  func(ctx context.Context, id solana.PublicKey, state *raydium.LiquidityStateV4)
	sell func(ctx context.Context, id solana.PublicKey, account token.Account)

	workflows sync.WaitGroup
	closers   []func()
}

func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:          cfg,
		logger:       logger,
		runTimestamp: uint64(time.Now().Unix()),
	}
}

// Initialize builds every component. Nothing touches the chain except the
// optional market preload.
func (r *Runner) Initialize(ctx context.Context) error {
	cfg := r.cfg

	if cfg.License.Key != "" {
		r.license = license.NewValidator(license.Config{
			Key:     cfg.License.Key,
			Account: cfg.License.Account,
			Product: cfg.License.Product,
			Token:   cfg.License.Token,
		}, r.logger)
		if err := r.license.Validate(ctx); err != nil {
			return fmt.Errorf("license validation failed: %w", err)
		}
		if err := r.license.StartHeartbeat(ctx, licenseHeartbeat); err != nil {
			return err
		}
		r.closers = append(r.closers, r.license.StopHeartbeat)
	}

	quote, err := cfg.QuoteMint()
	if err != nil {
		return err
	}
	r.quote = quote

	r.wallet, err = wallet.NewWallet(cfg.Wallet.PrivateKey)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}

	commitment := rpc.CommitmentType(cfg.RPC.Commitment)
	client := solbc.NewClient(cfg.RPC.Endpoint, r.logger,
		solbc.WithCommitment(commitment),
		solbc.WithPollInterval(time.Duration(cfg.RPC.ConfirmPollMs)*time.Millisecond))

	r.registry = prometheus.NewRegistry()
	r.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(r.registry)

	r.bus = events.NewBus(r.logger, eventBusBuffer)

	if err := r.initStorage(ctx); err != nil {
		return err
	}

	var store cache.MarketStore
	if cfg.Redis.URL != "" {
		rs, err := redis.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, func() { _ = rs.Close() })
		store = rs
	}
	r.markets = cache.NewMarketCache(client, quote.Mint, store, r.logger)
	r.pools = cache.NewPoolCache(r.logger)
	if cfg.Bot.PreLoadExistingMarkets {
		if err := r.markets.Init(ctx); err != nil {
			return err
		}
	}

	exec, err := executor.New(executor.Config{
		Kind:      executor.Kind(cfg.Bot.Executor),
		FeeWallet: cfg.FeeWallet(),
		QuoteMint: quote.Mint,
	}, client, m, r.logger)
	if err != nil {
		return err
	}

	deps := Deps{
		Client:   client,
		Markets:  r.markets,
		Pools:    r.pools,
		Quoter:   raydium.NewQuoter(client, r.logger),
		Executor: exec,
		Events:   r.bus,
		Metrics:  m,
	}

	if cfg.SnipeList.Enabled {
		r.snipe, err = snipelist.New(cfg.SnipeList.Path, r.logger)
		if err != nil {
			return err
		}
		if err := r.snipe.Start(cfg.SnipeList.Refresh); err != nil {
			return err
		}
		r.closers = append(r.closers, r.snipe.Stop)
		deps.SnipeList = r.snipe
	} else {
		pf := filter.New(client, filter.Config{
			CheckRenounced: cfg.Filters.CheckRenounced,
			CheckFreezable: cfg.Filters.CheckFreezable,
			CheckBurned:    cfg.Filters.CheckBurned,
			MinPoolSize:    quote.Raw(cfg.Filters.MinPoolSize),
			MaxPoolSize:    quote.Raw(cfg.Filters.MaxPoolSize),
		}, r.logger)
		if pf.Len() > 0 {
			deps.Filters = pf
		}
	}

	if cfg.Risk.Enabled {
		rc, err := risk.NewClient(cfg.Risk.BaseURL, time.Duration(cfg.Risk.TimeoutMs)*time.Millisecond, r.logger)
		if err != nil {
			return err
		}
		deps.Risk = rc
	}

	r.bot, err = New(Config{
		QuoteMint:        quote.Mint,
		QuoteSymbol:      quote.Symbol,
		QuoteAmount:      quote.Raw(cfg.Buy.QuoteAmount),
		SinglePosition:   cfg.Bot.SinglePosition,
		MaxBuyRetries:    cfg.Buy.MaxRetries,
		MaxSellRetries:   cfg.Sell.MaxRetries,
		BuySlippage:      cfg.Buy.Slippage,
		SellSlippage:     cfg.Sell.Slippage,
		BuyDelay:         time.Duration(cfg.Buy.DelayMs) * time.Millisecond,
		SellDelay:        time.Duration(cfg.Sell.DelayMs) * time.Millisecond,
		Thresholds:       cfg.Thresholds(),
		SetCustomTips:    cfg.Fees.SetCustomTips,
		ComputeUnitLimit: cfg.Fees.ComputeUnitLimit,
		ComputeUnitPrice: cfg.Fees.ComputeUnitPrice,
		RiskCheck:        cfg.Risk.Enabled,
		MaxRiskScore:     cfg.Risk.MaxScore,
	}, r.wallet, deps, r.logger)
	if err != nil {
		return err
	}
	r.buy, r.sell = r.bot.Buy, r.bot.Sell

	r.listener = listener.New(listener.Config{
		QuoteMint:      quote.Mint,
		Wallet:         r.wallet.PublicKey,
		Markets:        cfg.Bot.CacheNewMarkets,
		WalletAccounts: cfg.Bot.AutoSell,
	}, listener.WSConnector(cfg.RPC.WebsocketEndpoint, commitment), r.logger)

	if cfg.Server.Addr != "" {
		r.server = server.New(server.Options{
			Addr:     cfg.Server.Addr,
			Gatherer: r.registry,
			Gate:     r.bot.Gate(),
			Ledger:   r.bot.Ledger(),
			Journal:  r.journal,
		}, r.logger)
	}
	return nil
}

func (r *Runner) initStorage(ctx context.Context) error {
	if r.cfg.Postgres.URL == "" {
		r.journal = storage.NewMemory(memoryJournalSize)
	} else {
		pg, err := postgres.Connect(ctx, r.cfg.Postgres.URL, r.logger)
		if err != nil {
			return err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return err
		}
		r.closers = append(r.closers, pg.Close)
		r.journal = pg
	}
	sub := storage.Subscribe(r.bus, r.journal, r.logger)
	r.closers = append(r.closers, sub.Unsubscribe)

	if r.cfg.Export.Dir != "" {
		return r.scheduleReport(ctx)
	}
	return nil
}

// scheduleReport writes the previous day's trade report on the configured
// schedule.
func (r *Runner) scheduleReport(ctx context.Context) error {
	exporter := export.NewExporter(r.logger)
	c := cron.New()
	if _, err := c.AddFunc(r.cfg.Export.Schedule, func() {
		trades, err := r.journal.Recent(ctx, reportTradeLimit)
		if err != nil {
			r.logger.Warn("Failed to read journal for daily report", zap.Error(err))
			return
		}
		yesterday := time.Now().AddDate(0, 0, -1)
		if _, err := exporter.ExportDailyReport(trades, yesterday, r.cfg.Export.Dir); err != nil {
			r.logger.Warn("Failed to export daily report", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}
	c.Start()
	r.closers = append(r.closers, func() { <-c.Stop().Done() })
	return nil
}

// Run validates the wallet and processes listener events until ctx is
// cancelled. In-flight workflows are drained before it returns.
func (r *Runner) Run(ctx context.Context) error {
	if !r.bot.Validate(ctx) {
		return ErrInvalidWallet
	}
	r.logger.Info("Bot is running! Press CTRL + C to stop it.",
		zap.String("wallet", r.wallet.PublicKey.String()),
		zap.String("quote", r.quote.Symbol))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.listener.Run(gctx)
	})
	g.Go(func() error {
		for ev := range r.listener.Events() {
			r.dispatch(gctx, ev)
		}
		return nil
	})
	if r.server != nil {
		g.Go(func() error {
			return r.server.Run(gctx)
		})
	}

	err := g.Wait()
	r.drain()
	return err
}

// dispatch routes one listener event. Workflows run on their own goroutines.
func (r *Runner) dispatch(ctx context.Context, ev listener.Event) {
	switch e := ev.(type) {
	case listener.MarketEvent:
		r.markets.Save(ctx, e.ID.String(), e.State)

	case listener.PoolEvent:
		mint := e.State.BaseMint.String()
		if _, known := r.pools.Get(mint); known || e.State.PoolOpenTime <= r.runTimestamp {
			return
		}
		r.pools.Save(e.ID.String(), e.State)
		r.spawn(func() { r.buy(ctx, e.ID, e.State) })

	case listener.WalletEvent:
		if e.Account.Mint.Equals(r.quote.Mint) {
			return
		}
		r.spawn(func() { r.sell(ctx, e.ID, e.Account) })
	}
}

func (r *Runner) spawn(fn func()) {
	r.workflows.Add(1)
	go func() {
		defer r.workflows.Done()
		fn()
	}()
}

func (r *Runner) drain() {
	done := make(chan struct{})
	go func() {
		r.workflows.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(workflowDrainLimit):
		r.logger.Warn("Timed out waiting for running workflows")
	}
}

// Bot returns the controller, nil before Initialize.
func (r *Runner) Bot() *Bot { return r.bot }

// Bus returns the event bus, nil before Initialize.
func (r *Runner) Bus() *events.Bus { return r.bus }

// Wallet returns the trading wallet, nil before Initialize.
func (r *Runner) Wallet() *wallet.Wallet { return r.wallet }

// Quote returns the configured quote token.
func (r *Runner) Quote() config.QuoteToken { return r.quote }

// Shutdown releases every resource opened by Initialize.
func (r *Runner) Shutdown() {
	r.logger.Info("Bot shutting down gracefully")

	// Drain the bus first so the journal records the last trades.
	if r.bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := r.bus.Shutdown(ctx); err != nil {
			r.logger.Warn("Event bus did not drain", zap.Error(err))
		}
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}

	if err := r.logger.Sync(); err != nil {
		if !os.IsNotExist(err) &&
			err.Error() != "sync /dev/stdout: invalid argument" &&
			err.Error() != "sync /dev/stderr: inappropriate ioctl for device" {
			fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
		}
	}
}
