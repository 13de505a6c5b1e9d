// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Blockhash хранит recent blockhash вместе с высотой блока, после которой
// подписанная им транзакция уже не может быть подтверждена.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// Confirmation описывает итог ожидания подтверждения одной транзакции.
// Confirmed=false и Err=nil означает, что окно blockhash истекло.
type Confirmation struct {
	Confirmed bool
	Err       error
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
type Client interface {
	// Получить последний blockhash вместе с окном его валидности.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)
	// Отправить подписанную транзакцию.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// Дождаться подтверждения в пределах окна blockhash.
	ConfirmTransaction(ctx context.Context, sig solana.Signature, bh Blockhash) (*Confirmation, error)
	// Получить информацию об аккаунте.
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	// Получить данные аккаунта и декодировать их в dst.
	GetAccountDataInto(ctx context.Context, pubkey solana.PublicKey, dst interface{}) error
	// Получить несколько аккаунтов за один запрос.
	GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error)
	// Получить аккаунты программы с фильтрами.
	GetProgramAccountsWithOpts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
	// Получить эмиссию токена в минимальных единицах.
	GetTokenSupply(ctx context.Context, mint solana.PublicKey) (uint64, error)
	// Получить баланс токен-аккаунта в минимальных единицах.
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}
