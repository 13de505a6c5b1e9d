// internal/dex/raydium/quote.go
package raydium

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Direction определяет направление свапа относительно base-токена пула.
type Direction int

const (
	// DirectionBuy: обмен quote -> base.
	DirectionBuy Direction = iota
	// DirectionSell: обмен base -> quote.
	DirectionSell
)

func (d Direction) String() string {
	if d == DirectionBuy {
		return "buy"
	}
	return "sell"
}

// Quote содержит результат расчёта свапа в минимальных единицах.
type Quote struct {
	AmountIn     uint64
	AmountOut    uint64
	MinAmountOut uint64
}

// Reserves содержит текущие резервы пула за вычетом pnl, ожидающего вывода.
type Reserves struct {
	Base           uint64
	Quote          uint64
	FeeNumerator   uint64
	FeeDenominator uint64
}

// ErrEmptyPool возвращается, когда у пула нулевые резервы.
var ErrEmptyPool = errors.New("raydium: pool has no liquidity")

// AccountsReader описывает часть RPC клиента, нужную котировщику.
type AccountsReader interface {
	GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error)
}

// Quoter рассчитывает выход свапа по живым резервам пула.
type Quoter struct {
	client AccountsReader
	logger *zap.Logger
}

// NewQuoter создаёт котировщик.
func NewQuoter(client AccountsReader, logger *zap.Logger) *Quoter {
	return &Quoter{
		client: client,
		logger: logger.Named("raydium-quoter"),
	}
}

// FetchReserves читает состояние пула и оба vault одним запросом.
func (q *Quoter) FetchReserves(ctx context.Context, keys *PoolKeys) (*Reserves, error) {
	res, err := q.client.GetMultipleAccounts(ctx, []solana.PublicKey{keys.ID, keys.BaseVault, keys.QuoteVault})
	if err != nil {
		return nil, fmt.Errorf("fetch pool accounts: %w", err)
	}
	if res == nil || len(res.Value) != 3 {
		return nil, fmt.Errorf("fetch pool accounts: unexpected response")
	}
	for i, acc := range res.Value {
		if acc == nil || acc.Data == nil {
			return nil, fmt.Errorf("fetch pool accounts: account %d not found", i)
		}
	}

	state, err := DecodeLiquidityState(res.Value[0].Data.GetBinary())
	if err != nil {
		return nil, err
	}
	baseVault, err := decodeTokenAmount(res.Value[1].Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("base vault: %w", err)
	}
	quoteVault, err := decodeTokenAmount(res.Value[2].Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("quote vault: %w", err)
	}

	num, den := state.swapFee()
	return &Reserves{
		Base:           saturatingSub(baseVault, state.BaseNeedTakePnl),
		Quote:          saturatingSub(quoteVault, state.QuoteNeedTakePnl),
		FeeNumerator:   num,
		FeeDenominator: den,
	}, nil
}

// ComputeAmountOut котирует свап amountIn в указанном направлении.
func (q *Quoter) ComputeAmountOut(ctx context.Context, keys *PoolKeys, amountIn uint64, dir Direction, slippagePct float64) (*Quote, error) {
	reserves, err := q.FetchReserves(ctx, keys)
	if err != nil {
		return nil, err
	}
	quote, err := ComputeAmountOut(reserves, amountIn, dir, slippagePct)
	if err != nil {
		return nil, err
	}

	q.logger.Debug("Computed amount out",
		zap.String("pool", keys.ID.String()),
		zap.String("direction", dir.String()),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("amount_out", quote.AmountOut),
		zap.Uint64("min_amount_out", quote.MinAmountOut))
	return quote, nil
}

// ComputeAmountOut реализует формулу constant product с комиссией пула:
// out = reserveOut * inWithFee / (reserveIn + inWithFee),
// minOut = out / (1 + slippage/100).
func ComputeAmountOut(r *Reserves, amountIn uint64, dir Direction, slippagePct float64) (*Quote, error) {
	reserveIn, reserveOut := r.Quote, r.Base
	if dir == DirectionSell {
		reserveIn, reserveOut = r.Base, r.Quote
	}
	if reserveIn == 0 || reserveOut == 0 {
		return nil, ErrEmptyPool
	}
	if slippagePct < 0 || math.IsNaN(slippagePct) || math.IsInf(slippagePct, 0) {
		return nil, fmt.Errorf("raydium: invalid slippage %v", slippagePct)
	}

	feeNum, feeDen := r.FeeNumerator, r.FeeDenominator
	if feeDen == 0 {
		feeNum, feeDen = DefaultFeeNumerator, DefaultFeeDenominator
	}

	in := new(big.Int).SetUint64(amountIn)
	fee := new(big.Int).Mul(in, new(big.Int).SetUint64(feeNum))
	fee.Quo(fee, new(big.Int).SetUint64(feeDen))
	inWithFee := new(big.Int).Sub(in, fee)

	numerator := new(big.Int).Mul(new(big.Int).SetUint64(reserveOut), inWithFee)
	denominator := new(big.Int).Add(new(big.Int).SetUint64(reserveIn), inWithFee)
	out := new(big.Int).Quo(numerator, denominator)

	// minOut = out * 100 / (100 + slippage)
	ratio := new(big.Rat).SetFrac64(100, 1)
	ratio.Quo(ratio, new(big.Rat).Add(big.NewRat(100, 1), new(big.Rat).SetFloat64(slippagePct)))
	minOut := new(big.Rat).Mul(new(big.Rat).SetInt(out), ratio)
	minOutInt := new(big.Int).Quo(minOut.Num(), minOut.Denom())

	return &Quote{
		AmountIn:     amountIn,
		AmountOut:    out.Uint64(),
		MinAmountOut: minOutInt.Uint64(),
	}, nil
}

func decodeTokenAmount(data []byte) (uint64, error) {
	var acc token.Account
	if err := bin.NewBinDecoder(data).Decode(&acc); err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
