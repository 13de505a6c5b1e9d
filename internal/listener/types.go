// internal/listener/types.go
package listener

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

// Event is one decoded account update.
type Event interface {
	Key() solana.PublicKey
}

// MarketEvent is an OpenBook market quoted in the configured mint.
type MarketEvent struct {
	ID    solana.PublicKey
	State *raydium.MarketStateV3
}

// PoolEvent is a swap-enabled Raydium AMM v4 pool quoted in the configured mint.
type PoolEvent struct {
	ID    solana.PublicKey
	State *raydium.LiquidityStateV4
}

// WalletEvent is a change of a token account owned by the wallet.
type WalletEvent struct {
	ID      solana.PublicKey
	Account token.Account
}

func (e MarketEvent) Key() solana.PublicKey { return e.ID }
func (e PoolEvent) Key() solana.PublicKey   { return e.ID }
func (e WalletEvent) Key() solana.PublicKey { return e.ID }

// Stream delivers notifications of one program subscription.
type Stream interface {
	Recv(ctx context.Context) (*ws.ProgramResult, error)
	Unsubscribe()
}

// Subscriber opens program subscriptions over one connection.
type Subscriber interface {
	Subscribe(programID solana.PublicKey, filters []rpc.RPCFilter) (Stream, error)
	Close()
}

// Connector dials a new Subscriber.
type Connector func(ctx context.Context) (Subscriber, error)

// WSConnector connects to a Solana websocket endpoint.
func WSConnector(endpoint string, commitment rpc.CommitmentType) Connector {
	return func(ctx context.Context) (Subscriber, error) {
		client, err := ws.Connect(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		return &wsSubscriber{client: client, commitment: commitment}, nil
	}
}

type wsSubscriber struct {
	client     *ws.Client
	commitment rpc.CommitmentType
}

func (s *wsSubscriber) Subscribe(programID solana.PublicKey, filters []rpc.RPCFilter) (Stream, error) {
	sub, err := s.client.ProgramSubscribeWithOpts(programID, s.commitment, solana.EncodingBase64, filters)
	if err != nil {
		return nil, err
	}
	return newWSStream(sub), nil
}

func (s *wsSubscriber) Close() {
	s.client.Close()
}

// errSubscriptionClosed is returned by a stream whose subscription ended
// without an error.
var errSubscriptionClosed = errors.New("subscription closed")

// programSubscription is the part of *ws.ProgramSubscription a stream reads.
type programSubscription interface {
	Recv() (*ws.ProgramResult, error)
	Unsubscribe()
}

var (
	_ programSubscription = (*ws.ProgramSubscription)(nil)
	_ Stream              = (*wsStream)(nil)
)

// wsStream adds cancellation to a subscription: a cancelled ctx unsubscribes,
// which unblocks a pending Recv.
type wsStream struct {
	sub  programSubscription
	once sync.Once
}

func newWSStream(sub programSubscription) *wsStream {
	return &wsStream{sub: sub}
}

func (s *wsStream) Recv(ctx context.Context) (*ws.ProgramResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, s.Unsubscribe)
	defer stop()

	res, err := s.sub.Recv()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errSubscriptionClosed
	}
	return res, nil
}

func (s *wsStream) Unsubscribe() {
	s.once.Do(s.sub.Unsubscribe)
}
