package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

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

// --- fakes -------------------------------------------------------------

type fakeChain struct {
	accountErr error
}

func (c *fakeChain) GetLatestBlockhash(context.Context) (*blockchain.Blockhash, error) {
	return &blockchain.Blockhash{Hash: solana.Hash{7}, LastValidBlockHeight: 100}, nil
}

func (c *fakeChain) GetAccountInfo(context.Context, solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	if c.accountErr != nil {
		return nil, c.accountErr
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{}}, nil
}

type fakeMarkets struct {
	err error
}

func (m *fakeMarkets) Get(context.Context, string) (raydium.MarketKeys, error) {
	if m.err != nil {
		return raydium.MarketKeys{}, m.err
	}
	return raydium.MarketKeys{VaultSignerNonce: 1}, nil
}

type fakeQuoter struct {
	mu      sync.Mutex
	buyOut  uint64
	sellOut uint64
	sellErr error
}

func (q *fakeQuoter) setSellOut(v uint64) {
	q.mu.Lock()
	q.sellOut = v
	q.mu.Unlock()
}

func (q *fakeQuoter) ComputeAmountOut(_ context.Context, _ *raydium.PoolKeys, _ uint64, dir raydium.Direction, _ float64) (*raydium.Quote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if dir == raydium.DirectionSell {
		if q.sellErr != nil {
			return nil, q.sellErr
		}
		return &raydium.Quote{AmountOut: q.sellOut, MinAmountOut: q.sellOut / 2}, nil
	}
	return &raydium.Quote{AmountOut: q.buyOut, MinAmountOut: q.buyOut / 2}, nil
}

type step struct {
	outcome *executor.Outcome
	err     error
	panic   bool
}

var (
	confirmed   = step{outcome: &executor.Outcome{Confirmed: true, Signature: solana.Signature{1}}}
	unconfirmed = step{outcome: &executor.Outcome{Signature: solana.Signature{2}}}
	rejected    = step{outcome: &executor.Outcome{Signature: solana.Signature{3}, Err: errors.New("slippage exceeded")}}
	sendFailed  = step{err: errors.New("node is behind")}
	panicked    = step{panic: true}
)

type fakeExecutor struct {
	mu    sync.Mutex
	steps []step
	calls int
	fees  []uint64
	txs   []*solana.Transaction
	fee   bool
	block chan struct{}
}

func (e *fakeExecutor) ExecuteAndConfirm(_ context.Context, tx *solana.Transaction, _ *wallet.Wallet, _ blockchain.Blockhash, fee uint64) (*executor.Outcome, error) {
	e.mu.Lock()
	i := e.calls
	e.calls++
	e.fees = append(e.fees, fee)
	e.txs = append(e.txs, tx)
	block := e.block
	e.mu.Unlock()

	if block != nil {
		<-block
	}
	s := e.steps[min(i, len(e.steps)-1)]
	if s.panic {
		panic("rpc exploded")
	}
	return s.outcome, s.err
}

func (e *fakeExecutor) SupportsFee() bool { return e.fee }

func (e *fakeExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type filterFunc func(context.Context, *raydium.PoolKeys) bool

func (f filterFunc) Execute(ctx context.Context, keys *raydium.PoolKeys) bool { return f(ctx, keys) }

type fakeRisk struct {
	score float64
	err   error
}

func (r *fakeRisk) Fetch(_ context.Context, mint string) (*risk.Report, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &risk.Report{Mint: mint, Score: r.score}, nil
}

type allowList map[string]bool

func (l allowList) Contains(mint string) bool { return l[mint] }

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type())
	}
	return out
}

func (r *recorder) last(t events.EventType) *events.TradeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if te, ok := r.events[i].(*events.TradeEvent); ok && te.Type() == t {
			return te
		}
	}
	return nil
}

// --- fixture -----------------------------------------------------------

type fixture struct {
	bot     *Bot
	chain   *fakeChain
	markets *fakeMarkets
	pools   *cache.PoolCache
	quoter  *fakeQuoter
	exec    *fakeExecutor
	events  *recorder
	reg     *prometheus.Registry
}

func testConfig() Config {
	return Config{
		QuoteMint:      raydium.WrappedSolMint,
		QuoteSymbol:    "WSOL",
		QuoteAmount:    100,
		SinglePosition: true,
		MaxBuyRetries:  3,
		MaxSellRetries: 3,
		BuySlippage:    20,
		SellSlippage:   20,
		Thresholds: position.Thresholds{
			StopLossPct:       10,
			TakeProfitEnabled: true,
			First:             position.TakeProfit{AfterGainPct: 50, SellPct: 50},
			Second:            position.TakeProfit{AfterGainPct: 100, SellPct: 100},
			FeeOnProfitPct:    10,
		},
	}
}

func newFixture(t *testing.T, mutate func(*Config, *Deps)) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)

	reg := prometheus.NewRegistry()
	f := &fixture{
		chain:   &fakeChain{},
		markets: &fakeMarkets{},
		pools:   cache.NewPoolCache(log),
		quoter:  &fakeQuoter{buyOut: 1_000, sellOut: 100},
		exec:    &fakeExecutor{steps: []step{confirmed}},
		events:  &recorder{},
		reg:     reg,
	}

	cfg := testConfig()
	deps := Deps{
		Client:   f.chain,
		Markets:  f.markets,
		Pools:    f.pools,
		Quoter:   f.quoter,
		Executor: f.exec,
		Events:   f.events,
		Metrics:  metrics.New(reg),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	b, err := New(cfg, w, deps, log)
	require.NoError(t, err)
	f.bot = b
	return f
}

func newPoolState() *raydium.LiquidityStateV4 {
	return &raydium.LiquidityStateV4{
		BaseDecimal:     6,
		QuoteDecimal:    9,
		PoolOpenTime:    uint64(time.Now().Unix()),
		BaseVault:       solana.NewWallet().PublicKey(),
		QuoteVault:      solana.NewWallet().PublicKey(),
		BaseMint:        solana.NewWallet().PublicKey(),
		QuoteMint:       raydium.WrappedSolMint,
		LpMint:          solana.NewWallet().PublicKey(),
		OpenOrders:      solana.NewWallet().PublicKey(),
		MarketID:        solana.NewWallet().PublicKey(),
		MarketProgramID: raydium.OpenBookProgramID,
		TargetOrders:    solana.NewWallet().PublicKey(),
	}
}

// counter reads one sample of a counter vector from the fixture registry.
func (f *fixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

// held registers a bought pool and returns the wallet token account for it.
func (f *fixture) held(amount uint64) (solana.PublicKey, token.Account) {
	state := newPoolState()
	f.pools.Save(solana.NewWallet().PublicKey().String(), state)
	return solana.NewWallet().PublicKey(), token.Account{
		Mint:   state.BaseMint,
		Owner:  f.bot.wallet.PublicKey,
		Amount: amount,
	}
}

// --- buy ---------------------------------------------------------------

func TestBuyConfirmedOnFirstAttempt(t *testing.T) {
	f := newFixture(t, nil)

	f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())

	assert.Equal(t, 1, f.exec.callCount())
	assert.Equal(t, []uint64{0}, f.exec.fees, "buys never carry a fee")
	assert.Equal(t, []events.EventType{events.PoolDetected, events.BuyConfirmed}, f.events.types())
	assert.Equal(t, 1.0, f.counter(t, "sniper_trades_confirmed_total", map[string]string{"side": "buy"}))
	assert.False(t, f.bot.Gate().State().Held)
}

func TestBuyExhaustsRetriesAndReleasesGate(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.steps = []step{unconfirmed}

	f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())

	assert.Equal(t, 3, f.exec.callCount())
	ev := f.events.last(events.BuyFailed)
	require.NotNil(t, ev)
	assert.Equal(t, 3, ev.Attempts)
	assert.True(t, f.bot.Gate().TryAcquireBuy(), "gate must be free after the workflow")
}

func TestBuyStopsOnFirstConfirmed(t *testing.T) {
	f := newFixture(t, func(c *Config, _ *Deps) { c.MaxBuyRetries = 5 })
	f.exec.steps = []step{unconfirmed, rejected, sendFailed, confirmed, unconfirmed}

	f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())

	assert.Equal(t, 4, f.exec.callCount())
	require.NotNil(t, f.events.last(events.BuyConfirmed))
}

func TestBuyPanickingAttemptIsRetried(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.steps = []step{panicked, confirmed}

	f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())

	assert.Equal(t, 2, f.exec.callCount())
	require.NotNil(t, f.events.last(events.BuyConfirmed))
	assert.False(t, f.bot.Gate().State().Held)
}

func TestBuySkippedWhileGateHeld(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.bot.Gate().TryAcquireBuy())

	f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())

	assert.Zero(t, f.exec.callCount())
	assert.Equal(t, skipBusy, f.events.last(events.BuySkipped).Reason)
	assert.True(t, f.bot.Gate().State().Held, "a skipped buy must not release a lock it does not own")
}

func TestBuySkippedWhileSelling(t *testing.T) {
	f := newFixture(t, nil)
	f.bot.Gate().EnterSell()
	defer f.bot.Gate().ExitSell()

	f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())
	assert.Zero(t, f.exec.callCount())
}

func TestBuyWithoutSinglePositionRunsConcurrently(t *testing.T) {
	f := newFixture(t, func(c *Config, _ *Deps) { c.SinglePosition = false })
	f.bot.Gate().EnterSell()
	defer f.bot.Gate().ExitSell()

	f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())
	assert.Equal(t, 1, f.exec.callCount())
}

func TestBuyRiskCheck(t *testing.T) {
	tests := []struct {
		name  string
		risk  *fakeRisk
		calls int
	}{
		{"score below max", &fakeRisk{score: 100}, 1},
		{"score above max", &fakeRisk{score: 5_000}, 0},
		{"provider failure fails open", &fakeRisk{err: errors.New("timeout")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(c *Config, d *Deps) {
				c.RiskCheck = true
				c.MaxRiskScore = 1_000
				d.Risk = tt.risk
			})
			f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())
			assert.Equal(t, tt.calls, f.exec.callCount())
			assert.False(t, f.bot.Gate().State().Held)
		})
	}
}

func TestBuyLookupFailureAborts(t *testing.T) {
	f := newFixture(t, nil)
	f.markets.err = cache.ErrMarketNotFound

	f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())

	assert.Zero(t, f.exec.callCount())
	assert.Equal(t, skipLookup, f.events.last(events.BuySkipped).Reason)
	assert.False(t, f.bot.Gate().State().Held)
}

func TestBuyFilters(t *testing.T) {
	reject := filterFunc(func(context.Context, *raydium.PoolKeys) bool { return false })

	f := newFixture(t, func(_ *Config, d *Deps) { d.Filters = reject })
	f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())
	assert.Zero(t, f.exec.callCount())
	assert.Equal(t, skipFilters, f.events.last(events.BuySkipped).Reason)
}

func TestBuySnipeListBypassesFilters(t *testing.T) {
	state := newPoolState()
	reject := filterFunc(func(context.Context, *raydium.PoolKeys) bool { return false })

	listed := newFixture(t, func(_ *Config, d *Deps) {
		d.Filters = reject
		d.SnipeList = allowList{state.BaseMint.String(): true}
	})
	listed.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), state)
	assert.Equal(t, 1, listed.exec.callCount())

	unlisted := newFixture(t, func(_ *Config, d *Deps) { d.SnipeList = allowList{} })
	unlisted.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())
	assert.Zero(t, unlisted.exec.callCount())
	assert.Equal(t, skipSnipeList, unlisted.events.last(events.BuySkipped).Reason)
}

func TestBuyDelayHonoursCancellation(t *testing.T) {
	f := newFixture(t, func(c *Config, _ *Deps) { c.BuyDelay = time.Hour })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.bot.Buy(ctx, solana.NewWallet().PublicKey(), newPoolState())
	assert.Zero(t, f.exec.callCount())
	assert.False(t, f.bot.Gate().State().Held)
}

func TestBuysNeverOverlap(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())
		close(done)
	}()
	require.Eventually(t, func() bool { return f.exec.callCount() == 1 }, time.Second, 5*time.Millisecond)

	// the gate is held by the first buy
	f.bot.Buy(context.Background(), solana.NewWallet().PublicKey(), newPoolState())
	assert.Equal(t, 1, f.exec.callCount())

	close(f.exec.block)
	<-done
	assert.False(t, f.bot.Gate().State().Held)
}

// --- sell --------------------------------------------------------------

func TestSellTakeProfitFirstTranche(t *testing.T) {
	f := newFixture(t, nil)
	f.quoter.sellOut = 160
	accountID, account := f.held(1_000)

	f.bot.Sell(context.Background(), accountID, account)

	assert.Equal(t, 1, f.exec.callCount())
	assert.Equal(t, []uint64{0}, f.exec.fees, "direct executor carries no fee")
	assert.Equal(t, position.EntryState{SoldFirst: true}, f.bot.Ledger().Entry(account.Mint.String()))

	ev := f.events.last(events.SellConfirmed)
	require.NotNil(t, ev)
	assert.Equal(t, uint64(500), ev.AmountIn)
	assert.Equal(t, "take_profit", ev.Reason)
	assert.Equal(t, "first", ev.Tranche)
	assert.Equal(t, 1.0, f.counter(t, "sniper_exits_total", map[string]string{"reason": "take_profit", "tranche": "first"}))
	assert.Zero(t, f.bot.Gate().State().ActiveSells)
}

func TestSellFeeOnlyOnTakeProfit(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.fee = true

	f.quoter.sellOut = 160
	accountID, account := f.held(1_000)
	f.bot.Sell(context.Background(), accountID, account)

	f.quoter.sellOut = 85
	accountID, account = f.held(1_000)
	f.bot.Sell(context.Background(), accountID, account)

	assert.Equal(t, []uint64{6, 0}, f.exec.fees, "10% of a 60 profit, nothing on stop-loss")
	assert.Equal(t, "stop_loss", f.events.last(events.SellConfirmed).Reason)
}

func TestSellSecondTranche(t *testing.T) {
	f := newFixture(t, nil)
	accountID, account := f.held(1_000)
	mint := account.Mint.String()

	f.quoter.setSellOut(160)
	f.bot.Sell(context.Background(), accountID, account)
	require.True(t, f.bot.Ledger().Entry(mint).SoldFirst)

	// between the first and the second gain targets
	account.Amount = 500
	f.bot.Sell(context.Background(), accountID, account)
	assert.Equal(t, 1, f.exec.callCount())
	assert.Equal(t, skipNoMatch, f.events.last(events.SellSkipped).Reason)
	assert.Equal(t, "second", f.events.last(events.SellSkipped).Tranche)

	f.quoter.setSellOut(250)
	f.bot.Sell(context.Background(), accountID, account)
	assert.Equal(t, 2, f.exec.callCount())
	assert.Equal(t, position.EntryState{SoldFirst: true, SoldSecond: true}, f.bot.Ledger().Entry(mint))

	// a full exit closes the token account
	last := f.exec.txs[1]
	closeIx := last.Message.Instructions[len(last.Message.Instructions)-1]
	program, err := last.Message.Program(closeIx.ProgramIDIndex)
	require.NoError(t, err)
	assert.Equal(t, solana.TokenProgramID, program)

	f.bot.Sell(context.Background(), accountID, account)
	assert.Equal(t, 2, f.exec.callCount())
	assert.Equal(t, skipFullyExit, f.events.last(events.SellSkipped).Reason)
}

func TestSellRetryBound(t *testing.T) {
	f := newFixture(t, func(c *Config, _ *Deps) { c.MaxSellRetries = 2 })
	f.exec.steps = []step{unconfirmed}
	f.quoter.sellOut = 160
	accountID, account := f.held(1_000)

	f.bot.Sell(context.Background(), accountID, account)

	assert.Equal(t, 2, f.exec.callCount())
	assert.Equal(t, position.EntryState{}, f.bot.Ledger().Entry(account.Mint.String()))
	require.NotNil(t, f.events.last(events.SellFailed))
}

func TestSellSkips(t *testing.T) {
	t.Run("no price signal", func(t *testing.T) {
		f := newFixture(t, nil)
		f.quoter.sellOut = 120
		accountID, account := f.held(1_000)
		f.bot.Sell(context.Background(), accountID, account)
		assert.Zero(t, f.exec.callCount())
	})

	t.Run("quote failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.quoter.sellErr = errors.New("429")
		accountID, account := f.held(1_000)
		f.bot.Sell(context.Background(), accountID, account)
		assert.Zero(t, f.exec.callCount())
		assert.Equal(t, skipNoMatch, f.events.last(events.SellSkipped).Reason)
	})

	t.Run("zero amount", func(t *testing.T) {
		f := newFixture(t, nil)
		accountID, account := f.held(1)
		f.bot.Sell(context.Background(), accountID, account)
		assert.Equal(t, skipEmpty, f.events.last(events.SellSkipped).Reason)
	})

	t.Run("unknown pool", func(t *testing.T) {
		f := newFixture(t, nil)
		f.bot.Sell(context.Background(), solana.NewWallet().PublicKey(), token.Account{
			Mint:   solana.NewWallet().PublicKey(),
			Amount: 1_000,
		})
		assert.Equal(t, skipNoPool, f.events.last(events.SellSkipped).Reason)
	})
}

func TestConcurrentSellsExitOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.quoter.sellOut = 160
	f.exec.block = make(chan struct{})
	accountID, account := f.held(1_000)

	done := make(chan struct{})
	go func() {
		f.bot.Sell(context.Background(), accountID, account)
		close(done)
	}()
	require.Eventually(t, func() bool { return f.exec.callCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.bot.Gate().State().ActiveSells)

	// does not block on the running sell and does not submit a second exit
	f.bot.Sell(context.Background(), accountID, account)
	assert.Equal(t, skipInFlight, f.events.last(events.SellSkipped).Reason)

	close(f.exec.block)
	<-done

	assert.Equal(t, 1, f.exec.callCount())
	assert.Equal(t, position.EntryState{SoldFirst: true}, f.bot.Ledger().Entry(account.Mint.String()))
	assert.Zero(t, f.bot.Gate().State().ActiveSells)
}

// --- layout & validate -------------------------------------------------

func programs(t *testing.T, b *Bot, req swapRequest) []solana.PublicKey {
	t.Helper()
	var out []solana.PublicKey
	for _, ix := range b.instructions(req, 1) {
		out = append(out, ix.ProgramID())
	}
	return out
}

func TestInstructionLayout(t *testing.T) {
	f := newFixture(t, func(c *Config, _ *Deps) {
		c.SetCustomTips = true
		c.ComputeUnitLimit = 101337
		c.ComputeUnitPrice = 421197
	})
	keys := &raydium.PoolKeys{BaseMint: solana.NewWallet().PublicKey()}

	buy := programs(t, f.bot, swapRequest{keys: keys, direction: raydium.DirectionBuy, amountIn: 10})
	assert.Equal(t, []solana.PublicKey{
		computebudget.ProgramID,
		computebudget.ProgramID,
		solana.SPLAssociatedTokenAccountProgramID,
		raydium.LiquidityProgramV4,
	}, buy)

	f.bot.cfg.SetCustomTips = false
	partial := programs(t, f.bot, swapRequest{keys: keys, direction: raydium.DirectionSell, amountIn: 10})
	assert.Equal(t, []solana.PublicKey{raydium.LiquidityProgramV4}, partial)

	full := programs(t, f.bot, swapRequest{keys: keys, direction: raydium.DirectionSell, amountIn: 10, closeSource: true})
	assert.Equal(t, []solana.PublicKey{raydium.LiquidityProgramV4, solana.TokenProgramID}, full)
}

func TestValidate(t *testing.T) {
	f := newFixture(t, nil)
	assert.True(t, f.bot.Validate(context.Background()))

	f.chain.accountErr = rpc.ErrNotFound
	assert.False(t, f.bot.Validate(context.Background()))
}

func TestNewRequiresDependencies(t *testing.T) {
	w := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	_, err := New(testConfig(), w, Deps{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
