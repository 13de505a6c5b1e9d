// internal/dex/raydium/constants.go
package raydium

import (
	"github.com/gagliardetto/solana-go"
)

// Program IDs
var (
	// Используем MPK для краткости, так как это константы
	LiquidityProgramV4 = solana.MPK("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	OpenBookProgramID  = solana.MPK("srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX")
	WrappedSolMint     = solana.MPK("So11111111111111111111111111111111111111112")
	USDCMint           = solana.MPK("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

// Размеры аккаунтов
const (
	LiquidityStateV4Size = 752
	MarketStateV3Size    = 388
	TokenAccountSize     = 165
)

// Смещения полей, используемые в фильтрах подписок и getProgramAccounts
const (
	StatusOffset          = 0
	PoolBaseMintOffset    = 400
	PoolQuoteMintOffset   = 432
	PoolMarketProgOffset  = 560
	MarketQuoteMintOffset = 85
	TokenOwnerOffset      = 32
)

// PoolStatusSwapOnly статус пула, в котором разрешён только обмен (после открытия).
const PoolStatusSwapOnly uint64 = 6

// Комиссия пула по умолчанию, если в состоянии нулевой знаменатель
const (
	DefaultFeeNumerator   = 25
	DefaultFeeDenominator = 10000
)

// swapBaseInInstruction задаёт индекс инструкции swap_base_in в программе AMM v4
const swapBaseInInstruction uint8 = 9

var ammAuthoritySeed = []byte("amm authority")
