// internal/dex/raydium/state.go
package raydium

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// LiquidityStateV4 повторяет раскладку аккаунта пула AMM v4 (752 байта).
type LiquidityStateV4 struct {
	Status                 uint64
	Nonce                  uint64
	MaxOrder               uint64
	Depth                  uint64
	BaseDecimal            uint64
	QuoteDecimal           uint64
	State                  uint64
	ResetFlag              uint64
	MinSize                uint64
	VolMaxCutRatio         uint64
	AmountWaveRatio        uint64
	BaseLotSize            uint64
	QuoteLotSize           uint64
	MinPriceMultiplier     uint64
	MaxPriceMultiplier     uint64
	SystemDecimalValue     uint64
	MinSeparateNumerator   uint64
	MinSeparateDenominator uint64
	TradeFeeNumerator      uint64
	TradeFeeDenominator    uint64
	PnlNumerator           uint64
	PnlDenominator         uint64
	SwapFeeNumerator       uint64
	SwapFeeDenominator     uint64
	BaseNeedTakePnl        uint64
	QuoteNeedTakePnl       uint64
	QuoteTotalPnl          uint64
	BaseTotalPnl           uint64
	PoolOpenTime           uint64
	PunishPcAmount         uint64
	PunishCoinAmount       uint64
	OrderbookToInitTime    uint64

	SwapBaseInAmount   bin.Uint128
	SwapQuoteOutAmount bin.Uint128
	SwapBase2QuoteFee  uint64
	SwapQuoteInAmount  bin.Uint128
	SwapBaseOutAmount  bin.Uint128
	SwapQuote2BaseFee  uint64

	BaseVault       solana.PublicKey
	QuoteVault      solana.PublicKey
	BaseMint        solana.PublicKey
	QuoteMint       solana.PublicKey
	LpMint          solana.PublicKey
	OpenOrders      solana.PublicKey
	MarketID        solana.PublicKey
	MarketProgramID solana.PublicKey
	TargetOrders    solana.PublicKey
	WithdrawQueue   solana.PublicKey
	LpVault         solana.PublicKey
	Owner           solana.PublicKey

	LpReserve uint64
	Padding   [3]uint64
}

// LayoutError возвращается, когда данных аккаунта меньше, чем требует раскладка.
type LayoutError struct {
	Layout string
	Size   int
	Want   int
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("raydium: %s layout needs %d bytes, got %d", e.Layout, e.Want, e.Size)
}

// DecodeLiquidityState декодирует состояние пула из сырых данных аккаунта.
func DecodeLiquidityState(data []byte) (*LiquidityStateV4, error) {
	if len(data) < LiquidityStateV4Size {
		return nil, &LayoutError{Layout: "liquidity state v4", Size: len(data), Want: LiquidityStateV4Size}
	}
	var state LiquidityStateV4
	if err := bin.NewBinDecoder(data[:LiquidityStateV4Size]).Decode(&state); err != nil {
		return nil, fmt.Errorf("decode liquidity state: %w", err)
	}
	return &state, nil
}

// swapFee возвращает числитель и знаменатель комиссии пула.
func (s *LiquidityStateV4) swapFee() (uint64, uint64) {
	if s.SwapFeeDenominator == 0 {
		return DefaultFeeNumerator, DefaultFeeDenominator
	}
	return s.SwapFeeNumerator, s.SwapFeeDenominator
}
