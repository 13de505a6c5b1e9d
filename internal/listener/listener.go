// internal/listener/listener.go
package listener

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 30 * time.Second
	eventBuffer    = 256
)

// Config selects the subscriptions.
type Config struct {
	QuoteMint solana.PublicKey
	Wallet    solana.PublicKey
	// Markets subscribes to new OpenBook markets.
	Markets bool
	// WalletAccounts subscribes to the wallet's token accounts.
	WalletAccounts bool
}

type subscription struct {
	name    string
	program solana.PublicKey
	filters []rpc.RPCFilter
	decode  func(id solana.PublicKey, data []byte) (Event, error)
}

// Listener turns program account notifications into events and keeps the
// websocket connection alive.
type Listener struct {
	cfg     Config
	connect Connector
	events  chan Event
	logger  *zap.Logger
}

func New(cfg Config, connect Connector, logger *zap.Logger) *Listener {
	return &Listener{
		cfg:     cfg,
		connect: connect,
		events:  make(chan Event, eventBuffer),
		logger:  logger.Named("listener"),
	}
}

// Events is closed when Run returns.
func (l *Listener) Events() <-chan Event {
	return l.events
}

// Run subscribes and reconnects with exponential backoff until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	defer close(l.events)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff

	subs := l.subscriptions()
	for {
		err := l.session(ctx, subs, b.Reset)
		if ctx.Err() != nil {
			return nil
		}

		wait := b.NextBackOff()
		l.logger.Warn("Websocket session ended, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// session runs one connection. connected is called once every subscription
// is established.
func (l *Listener) session(ctx context.Context, subs []subscription, connected func()) error {
	conn, err := l.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	streams := make([]Stream, 0, len(subs))
	defer func() {
		for _, s := range streams {
			s.Unsubscribe()
		}
	}()
	for _, sub := range subs {
		stream, err := conn.Subscribe(sub.program, sub.filters)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.name, err)
		}
		streams = append(streams, stream)
		l.logger.Info("Listening for changes", zap.String("subscription", sub.name))
	}
	connected()

	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range subs {
		stream := streams[i]
		g.Go(func() error {
			return l.pump(gctx, sub, stream)
		})
	}
	return g.Wait()
}

func (l *Listener) pump(ctx context.Context, sub subscription, stream Stream) error {
	for {
		res, err := stream.Recv(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", sub.name, err)
		}
		ev, err := decodeResult(sub, res)
		if err != nil {
			l.logger.Debug("Skipping undecodable account",
				zap.String("subscription", sub.name),
				zap.Error(err))
			continue
		}
		select {
		case l.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func decodeResult(sub subscription, res *ws.ProgramResult) (Event, error) {
	if res == nil || res.Value.Account == nil || res.Value.Account.Data == nil {
		return nil, fmt.Errorf("empty notification")
	}
	return sub.decode(res.Value.Pubkey, res.Value.Account.Data.GetBinary())
}

func (l *Listener) subscriptions() []subscription {
	var subs []subscription
	if l.cfg.Markets {
		subs = append(subs, subscription{
			name:    "openbook",
			program: raydium.OpenBookProgramID,
			filters: MarketFilters(l.cfg.QuoteMint),
			decode:  decodeMarket,
		})
	}
	subs = append(subs, subscription{
		name:    "raydium",
		program: raydium.LiquidityProgramV4,
		filters: PoolFilters(l.cfg.QuoteMint),
		decode:  decodePool,
	})
	if l.cfg.WalletAccounts {
		subs = append(subs, subscription{
			name:    "wallet",
			program: solana.TokenProgramID,
			filters: WalletFilters(l.cfg.Wallet),
			decode:  decodeWallet,
		})
	}
	return subs
}

// MarketFilters matches OpenBook markets quoted in quoteMint.
func MarketFilters(quoteMint solana.PublicKey) []rpc.RPCFilter {
	return []rpc.RPCFilter{
		{DataSize: raydium.MarketStateV3Size},
		memcmp(raydium.MarketQuoteMintOffset, quoteMint.Bytes()),
	}
}

// PoolFilters matches swap-only AMM v4 pools on OpenBook quoted in quoteMint.
func PoolFilters(quoteMint solana.PublicKey) []rpc.RPCFilter {
	status := make([]byte, 8)
	binary.LittleEndian.PutUint64(status, raydium.PoolStatusSwapOnly)
	return []rpc.RPCFilter{
		{DataSize: raydium.LiquidityStateV4Size},
		memcmp(raydium.PoolQuoteMintOffset, quoteMint.Bytes()),
		memcmp(raydium.PoolMarketProgOffset, raydium.OpenBookProgramID.Bytes()),
		memcmp(raydium.StatusOffset, status),
	}
}

// WalletFilters matches SPL token accounts owned by wallet.
func WalletFilters(wallet solana.PublicKey) []rpc.RPCFilter {
	return []rpc.RPCFilter{
		{DataSize: raydium.TokenAccountSize},
		memcmp(raydium.TokenOwnerOffset, wallet.Bytes()),
	}
}

func memcmp(offset uint64, b []byte) rpc.RPCFilter {
	return rpc.RPCFilter{Memcmp: &rpc.RPCFilterMemcmp{Offset: offset, Bytes: solana.Base58(b)}}
}

func decodeMarket(id solana.PublicKey, data []byte) (Event, error) {
	state, err := raydium.DecodeMarketState(data)
	if err != nil {
		return nil, err
	}
	return MarketEvent{ID: id, State: state}, nil
}

func decodePool(id solana.PublicKey, data []byte) (Event, error) {
	state, err := raydium.DecodeLiquidityState(data)
	if err != nil {
		return nil, err
	}
	return PoolEvent{ID: id, State: state}, nil
}

func decodeWallet(id solana.PublicKey, data []byte) (Event, error) {
	var account token.Account
	if err := bin.NewBinDecoder(data).Decode(&account); err != nil {
		return nil, fmt.Errorf("decode token account: %w", err)
	}
	return WalletEvent{ID: id, Account: account}, nil
}
