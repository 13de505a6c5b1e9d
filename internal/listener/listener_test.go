package listener

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

type fakeStream struct {
	ch chan *ws.ProgramResult
}

func (s *fakeStream) Recv(ctx context.Context) (*ws.ProgramResult, error) {
	select {
	case r, ok := <-s.ch:
		if !ok {
			return nil, errors.New("connection reset")
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeStream) Unsubscribe() {}

type fakeSubscriber struct {
	mu      sync.Mutex
	streams map[solana.PublicKey]*fakeStream
	filters map[solana.PublicKey][]rpc.RPCFilter
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		streams: map[solana.PublicKey]*fakeStream{},
		filters: map[solana.PublicKey][]rpc.RPCFilter{},
	}
}

func (f *fakeSubscriber) stream(program solana.PublicKey) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streams[program]
	if !ok {
		s = &fakeStream{ch: make(chan *ws.ProgramResult, 8)}
		f.streams[program] = s
	}
	return s
}

func (f *fakeSubscriber) Subscribe(program solana.PublicKey, filters []rpc.RPCFilter) (Stream, error) {
	f.mu.Lock()
	f.filters[program] = filters
	f.mu.Unlock()
	return f.stream(program), nil
}

func (f *fakeSubscriber) Close() {}

func notification(id solana.PublicKey, data []byte) *ws.ProgramResult {
	return &ws.ProgramResult{Value: rpc.KeyedAccount{
		Pubkey:  id,
		Account: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(data)},
	}}
}

func encode(t *testing.T, v interface{}) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBinEncoder(buf).Encode(v))
	return buf.Bytes()
}

func TestPoolFilters(t *testing.T) {
	quote := raydium.WrappedSolMint
	filters := PoolFilters(quote)
	require.Len(t, filters, 4)

	assert.Equal(t, uint64(raydium.LiquidityStateV4Size), filters[0].DataSize)
	assert.Equal(t, uint64(432), filters[1].Memcmp.Offset)
	assert.Equal(t, solana.Base58(quote.Bytes()), filters[1].Memcmp.Bytes)
	assert.Equal(t, uint64(560), filters[2].Memcmp.Offset)
	assert.Equal(t, uint64(0), filters[3].Memcmp.Offset)
	assert.Equal(t, solana.Base58([]byte{6, 0, 0, 0, 0, 0, 0, 0}), filters[3].Memcmp.Bytes)
}

func TestSubscriptionsFollowConfig(t *testing.T) {
	names := func(cfg Config) []string {
		var out []string
		for _, s := range New(cfg, nil, zaptest.NewLogger(t)).subscriptions() {
			out = append(out, s.name)
		}
		return out
	}

	assert.Equal(t, []string{"raydium"}, names(Config{}))
	assert.Equal(t, []string{"openbook", "raydium", "wallet"}, names(Config{Markets: true, WalletAccounts: true}))
}

func TestRunDecodesAndReconnects(t *testing.T) {
	wallet := solana.NewWallet().PublicKey()
	sub := newFakeSubscriber()

	var dials atomic.Int32
	connect := func(context.Context) (Subscriber, error) {
		if dials.Add(1) == 1 {
			return nil, errors.New("dial tcp: connection refused")
		}
		return sub, nil
	}

	l := New(Config{QuoteMint: raydium.WrappedSolMint, Wallet: wallet, WalletAccounts: true}, connect, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	poolID := solana.NewWallet().PublicKey()
	state := &raydium.LiquidityStateV4{Status: 6, BaseMint: solana.NewWallet().PublicKey(), QuoteMint: raydium.WrappedSolMint}
	pools := sub.stream(raydium.LiquidityProgramV4)
	pools.ch <- notification(solana.NewWallet().PublicKey(), []byte{1, 2, 3})
	pools.ch <- notification(poolID, encode(t, state))

	select {
	case ev := <-l.Events():
		pool, ok := ev.(PoolEvent)
		require.True(t, ok)
		assert.Equal(t, poolID, pool.ID)
		assert.Equal(t, state.BaseMint, pool.State.BaseMint)
	case <-time.After(5 * time.Second):
		t.Fatal("no pool event")
	}

	accountID := solana.NewWallet().PublicKey()
	account := token.Account{Mint: solana.NewWallet().PublicKey(), Owner: wallet, Amount: 42}
	sub.stream(solana.TokenProgramID).ch <- notification(accountID, encode(t, &account))

	select {
	case ev := <-l.Events():
		w, ok := ev.(WalletEvent)
		require.True(t, ok)
		assert.Equal(t, accountID, w.Key())
		assert.Equal(t, uint64(42), w.Account.Amount)
	case <-time.After(time.Second):
		t.Fatal("no wallet event")
	}

	assert.Equal(t, int32(2), dials.Load())
	sub.mu.Lock()
	assert.Equal(t, WalletFilters(wallet), sub.filters[solana.TokenProgramID])
	sub.mu.Unlock()

	cancel()
	require.NoError(t, <-done)
	_, open := <-l.Events()
	assert.False(t, open)
}

// blockingSub mimics a websocket subscription: Recv waits for a result or
// for Unsubscribe.
type blockingSub struct {
	results chan *ws.ProgramResult
	closed  chan struct{}
	unsubs  atomic.Int32
	once    sync.Once
}

func newBlockingSub() *blockingSub {
	return &blockingSub{results: make(chan *ws.ProgramResult, 1), closed: make(chan struct{})}
}

func (s *blockingSub) Recv() (*ws.ProgramResult, error) {
	select {
	case r := <-s.results:
		return r, nil
	case <-s.closed:
		return nil, nil
	}
}

func (s *blockingSub) Unsubscribe() {
	s.unsubs.Add(1)
	s.once.Do(func() { close(s.closed) })
}

func TestWSStreamDeliversResults(t *testing.T) {
	sub := newBlockingSub()
	stream := newWSStream(sub)

	want := &ws.ProgramResult{}
	sub.results <- want
	got, err := stream.Recv(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Zero(t, sub.unsubs.Load())
}

func TestWSStreamCancelUnblocksRecv(t *testing.T) {
	sub := newBlockingSub()
	stream := newWSStream(sub)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Recv(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not return after cancel")
	}

	stream.Unsubscribe()
	assert.Equal(t, int32(1), sub.unsubs.Load())

	_, err := stream.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWSStreamClosedSubscription(t *testing.T) {
	sub := newBlockingSub()
	stream := newWSStream(sub)
	sub.Unsubscribe()

	_, err := stream.Recv(context.Background())
	assert.ErrorIs(t, err, errSubscriptionClosed)
}
