// internal/dex/raydium/market.go
package raydium

import (
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// MarketStateV3 повторяет раскладку рынка OpenBook (388 байт).
type MarketStateV3 struct {
	Head                   [5]byte
	AccountFlags           uint64
	OwnAddress             solana.PublicKey
	VaultSignerNonce       uint64
	BaseMint               solana.PublicKey
	QuoteMint              solana.PublicKey
	BaseVault              solana.PublicKey
	BaseDepositsTotal      uint64
	BaseFeesAccrued        uint64
	QuoteVault             solana.PublicKey
	QuoteDepositsTotal     uint64
	QuoteFeesAccrued       uint64
	QuoteDustThreshold     uint64
	RequestQueue           solana.PublicKey
	EventQueue             solana.PublicKey
	Bids                   solana.PublicKey
	Asks                   solana.PublicKey
	BaseLotSize            uint64
	QuoteLotSize           uint64
	FeeRateBps             uint64
	ReferrerRebatesAccrued uint64
	Tail                   [7]byte
}

// MarketKeys содержит минимальный набор ключей рынка, нужный для свапа через AMM.
type MarketKeys struct {
	EventQueue       solana.PublicKey `json:"event_queue"`
	Bids             solana.PublicKey `json:"bids"`
	Asks             solana.PublicKey `json:"asks"`
	BaseVault        solana.PublicKey `json:"base_vault"`
	QuoteVault       solana.PublicKey `json:"quote_vault"`
	VaultSignerNonce uint64           `json:"vault_signer_nonce"`
}

// DecodeMarketState декодирует полный аккаунт рынка OpenBook.
func DecodeMarketState(data []byte) (*MarketStateV3, error) {
	if len(data) < MarketStateV3Size {
		return nil, &LayoutError{Layout: "market state v3", Size: len(data), Want: MarketStateV3Size}
	}
	var market MarketStateV3
	if err := bin.NewBinDecoder(data[:MarketStateV3Size]).Decode(&market); err != nil {
		return nil, fmt.Errorf("decode market state: %w", err)
	}
	return &market, nil
}

// Keys извлекает из рынка ключи для свапа.
func (m *MarketStateV3) Keys() MarketKeys {
	return MarketKeys{
		EventQueue:       m.EventQueue,
		Bids:             m.Bids,
		Asks:             m.Asks,
		BaseVault:        m.BaseVault,
		QuoteVault:       m.QuoteVault,
		VaultSignerNonce: m.VaultSignerNonce,
	}
}

var errNoMarketAuthority = errors.New("raydium: unable to derive market authority")

// MarketAuthority вычисляет vault signer рынка. Если nonce известен, используется он,
// иначе перебираются значения так же, как это делает клиентский SDK.
func MarketAuthority(programID, marketID solana.PublicKey, nonce uint64) (solana.PublicKey, error) {
	if nonce != 0 {
		if pk, err := createMarketAuthority(programID, marketID, nonce); err == nil {
			return pk, nil
		}
	}
	for n := uint64(0); n < 100; n++ {
		pk, err := createMarketAuthority(programID, marketID, n)
		if err != nil {
			continue
		}
		return pk, nil
	}
	return solana.PublicKey{}, errNoMarketAuthority
}

func createMarketAuthority(programID, marketID solana.PublicKey, nonce uint64) (solana.PublicKey, error) {
	nonceBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(nonceBytes, nonce)
	return solana.CreateProgramAddress([][]byte{marketID.Bytes(), nonceBytes}, programID)
}
