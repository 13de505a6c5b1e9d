package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	args := m.Called(ctx, pubkey)
	if r, ok := args.Get(0).(*rpc.GetAccountInfoResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) GetProgramAccountsWithOpts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	args := m.Called(ctx, programID, opts)
	if r, ok := args.Get(0).(rpc.GetProgramAccountsResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type memStore struct {
	markets map[string]raydium.MarketKeys
	saves   int
}

func (s *memStore) Get(_ context.Context, id string) (raydium.MarketKeys, error) {
	if k, ok := s.markets[id]; ok {
		return k, nil
	}
	return raydium.MarketKeys{}, ErrMarketNotFound
}

func (s *memStore) Save(_ context.Context, id string, keys raydium.MarketKeys) error {
	s.markets[id] = keys
	s.saves++
	return nil
}

func marketData(eventQueue, bids, asks solana.PublicKey) []byte {
	data := make([]byte, raydium.MarketStateV3Size)
	binary.LittleEndian.PutUint64(data[45:], 2)
	copy(data[253:], eventQueue[:])
	copy(data[285:], bids[:])
	copy(data[317:], asks[:])
	return data
}

func TestMarketCacheFetchesOnMiss(t *testing.T) {
	id := solana.NewWallet().PublicKey()
	eq, bids, asks := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	client := new(mockClient)
	client.On("GetAccountInfo", mock.Anything, id).Return(&rpc.GetAccountInfoResult{
		Value: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(marketData(eq, bids, asks))},
	}, nil).Once()

	store := &memStore{markets: map[string]raydium.MarketKeys{}}
	c := NewMarketCache(client, raydium.WrappedSolMint, store, zaptest.NewLogger(t))

	keys, err := c.Get(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, eq, keys.EventQueue)
	assert.Equal(t, bids, keys.Bids)
	assert.Equal(t, asks, keys.Asks)
	assert.Equal(t, uint64(2), keys.VaultSignerNonce)
	assert.Equal(t, 1, store.saves)

	// second lookup is served from memory
	_, err = c.Get(context.Background(), id.String())
	require.NoError(t, err)
	client.AssertNumberOfCalls(t, "GetAccountInfo", 1)
}

func TestMarketCacheNotFound(t *testing.T) {
	id := solana.NewWallet().PublicKey()
	client := new(mockClient)
	client.On("GetAccountInfo", mock.Anything, id).Return(nil, rpc.ErrNotFound)

	c := NewMarketCache(client, raydium.WrappedSolMint, nil, zaptest.NewLogger(t))
	_, err := c.Get(context.Background(), id.String())
	assert.ErrorIs(t, err, ErrMarketNotFound)
}

func TestMarketCacheUsesStore(t *testing.T) {
	id := solana.NewWallet().PublicKey().String()
	want := raydium.MarketKeys{Bids: solana.NewWallet().PublicKey()}
	store := &memStore{markets: map[string]raydium.MarketKeys{id: want}}

	client := new(mockClient)
	c := NewMarketCache(client, raydium.WrappedSolMint, store, zaptest.NewLogger(t))

	got, err := c.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	client.AssertNotCalled(t, "GetAccountInfo", mock.Anything, mock.Anything)
}

func TestMarketCacheInit(t *testing.T) {
	good := solana.NewWallet().PublicKey()
	bad := solana.NewWallet().PublicKey()

	client := new(mockClient)
	client.On("GetProgramAccountsWithOpts", mock.Anything, raydium.OpenBookProgramID,
		mock.MatchedBy(func(opts *rpc.GetProgramAccountsOpts) bool {
			return len(opts.Filters) == 2 &&
				opts.Filters[0].DataSize == raydium.MarketStateV3Size &&
				opts.Filters[1].Memcmp.Offset == raydium.MarketQuoteMintOffset
		})).Return(rpc.GetProgramAccountsResult{
		{Pubkey: good, Account: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(marketData(good, good, good))}},
		{Pubkey: bad, Account: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes([]byte{1, 2, 3})}},
	}, nil)

	c := NewMarketCache(client, raydium.WrappedSolMint, nil, zaptest.NewLogger(t))
	require.NoError(t, c.Init(context.Background()))
	assert.Equal(t, 1, c.Len())

	keys, err := c.Get(context.Background(), good.String())
	require.NoError(t, err)
	assert.Equal(t, good, keys.Bids)
}

func TestMarketCacheInitError(t *testing.T) {
	client := new(mockClient)
	client.On("GetProgramAccountsWithOpts", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("too many accounts"))

	c := NewMarketCache(client, raydium.WrappedSolMint, nil, zaptest.NewLogger(t))
	assert.Error(t, c.Init(context.Background()))
}

func TestMarketCacheSaveKeepsFirst(t *testing.T) {
	c := NewMarketCache(new(mockClient), raydium.WrappedSolMint, nil, zaptest.NewLogger(t))
	id := solana.NewWallet().PublicKey().String()

	first := &raydium.MarketStateV3{Bids: solana.NewWallet().PublicKey()}
	c.Save(context.Background(), id, first)
	c.Save(context.Background(), id, &raydium.MarketStateV3{Bids: solana.NewWallet().PublicKey()})

	keys, err := c.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first.Bids, keys.Bids)
}
