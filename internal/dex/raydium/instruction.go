// internal/dex/raydium/instruction.go
package raydium

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// SwapParams описывает пользовательскую сторону свапа.
type SwapParams struct {
	Keys         *PoolKeys
	AmountIn     uint64
	MinAmountOut uint64
	// UserSource и UserDestination задают токен-аккаунты кошелька для входа и выхода.
	UserSource      solana.PublicKey
	UserDestination solana.PublicKey
	Owner           solana.PublicKey
}

// SwapBaseIn строит инструкцию swap_base_in (фиксированный вход) для AMM v4.
func SwapBaseIn(p SwapParams) solana.Instruction {
	data := make([]byte, 17)
	data[0] = swapBaseInInstruction
	binary.LittleEndian.PutUint64(data[1:9], p.AmountIn)
	binary.LittleEndian.PutUint64(data[9:17], p.MinAmountOut)

	k := p.Keys
	accounts := solana.AccountMetaSlice{
		solana.Meta(solana.TokenProgramID),
		solana.Meta(k.ID).WRITE(),
		solana.Meta(k.Authority),
		solana.Meta(k.OpenOrders).WRITE(),
		solana.Meta(k.TargetOrders).WRITE(),
		solana.Meta(k.BaseVault).WRITE(),
		solana.Meta(k.QuoteVault).WRITE(),
		solana.Meta(k.MarketProgramID),
		solana.Meta(k.MarketID).WRITE(),
		solana.Meta(k.MarketBids).WRITE(),
		solana.Meta(k.MarketAsks).WRITE(),
		solana.Meta(k.MarketEventQueue).WRITE(),
		solana.Meta(k.MarketBaseVault).WRITE(),
		solana.Meta(k.MarketQuoteVault).WRITE(),
		solana.Meta(k.MarketAuthority),
		solana.Meta(p.UserSource).WRITE(),
		solana.Meta(p.UserDestination).WRITE(),
		solana.Meta(p.Owner).SIGNER(),
	}

	programID := k.ProgramID
	if programID.IsZero() {
		programID = LiquidityProgramV4
	}
	return solana.NewInstruction(programID, accounts, data)
}
