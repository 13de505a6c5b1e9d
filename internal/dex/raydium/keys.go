// internal/dex/raydium/keys.go
package raydium

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// PoolKeys содержит все аккаунты, необходимые для котировки и свапа в пуле AMM v4.
type PoolKeys struct {
	ID            solana.PublicKey
	ProgramID     solana.PublicKey
	Authority     solana.PublicKey
	OpenOrders    solana.PublicKey
	TargetOrders  solana.PublicKey
	BaseVault     solana.PublicKey
	QuoteVault    solana.PublicKey
	WithdrawQueue solana.PublicKey
	LpVault       solana.PublicKey

	BaseMint      solana.PublicKey
	QuoteMint     solana.PublicKey
	LpMint        solana.PublicKey
	BaseDecimals  uint8
	QuoteDecimals uint8

	MarketProgramID  solana.PublicKey
	MarketID         solana.PublicKey
	MarketAuthority  solana.PublicKey
	MarketBaseVault  solana.PublicKey
	MarketQuoteVault solana.PublicKey
	MarketBids       solana.PublicKey
	MarketAsks       solana.PublicKey
	MarketEventQueue solana.PublicKey
}

var (
	ammAuthorityOnce sync.Once
	ammAuthority     solana.PublicKey
	ammAuthorityErr  error
)

// AmmAuthority возвращает PDA authority программы AMM v4.
func AmmAuthority() (solana.PublicKey, error) {
	ammAuthorityOnce.Do(func() {
		ammAuthority, _, ammAuthorityErr = solana.FindProgramAddress([][]byte{ammAuthoritySeed}, LiquidityProgramV4)
	})
	return ammAuthority, ammAuthorityErr
}

// NewPoolKeys собирает ключи пула из состояния AMM и ключей рынка.
func NewPoolKeys(id solana.PublicKey, state *LiquidityStateV4, market MarketKeys) (*PoolKeys, error) {
	authority, err := AmmAuthority()
	if err != nil {
		return nil, fmt.Errorf("amm authority: %w", err)
	}
	marketAuthority, err := MarketAuthority(state.MarketProgramID, state.MarketID, market.VaultSignerNonce)
	if err != nil {
		return nil, err
	}

	return &PoolKeys{
		ID:            id,
		ProgramID:     LiquidityProgramV4,
		Authority:     authority,
		OpenOrders:    state.OpenOrders,
		TargetOrders:  state.TargetOrders,
		BaseVault:     state.BaseVault,
		QuoteVault:    state.QuoteVault,
		WithdrawQueue: state.WithdrawQueue,
		LpVault:       state.LpVault,

		BaseMint:      state.BaseMint,
		QuoteMint:     state.QuoteMint,
		LpMint:        state.LpMint,
		BaseDecimals:  uint8(state.BaseDecimal),
		QuoteDecimals: uint8(state.QuoteDecimal),

		MarketProgramID:  state.MarketProgramID,
		MarketID:         state.MarketID,
		MarketAuthority:  marketAuthority,
		MarketBaseVault:  market.BaseVault,
		MarketQuoteVault: market.QuoteVault,
		MarketBids:       market.Bids,
		MarketAsks:       market.Asks,
		MarketEventQueue: market.EventQueue,
	}, nil
}
