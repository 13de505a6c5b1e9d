// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/blockchain"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	maxPollErrors       = 20
)

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc          *rpc.Client
	commitment   rpc.CommitmentType
	pollInterval time.Duration
	logger       *zap.Logger
}

// Option настраивает Client.
type Option func(*Client)

// WithCommitment задаёт уровень commitment для чтения и подтверждения.
func WithCommitment(c rpc.CommitmentType) Option {
	return func(cl *Client) {
		if c != "" {
			cl.commitment = c
		}
	}
}

// WithPollInterval задаёт интервал опроса статуса подписи.
func WithPollInterval(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.pollInterval = d
		}
	}
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		rpc:          rpc.New(rpcURL),
		commitment:   rpc.CommitmentConfirmed,
		pollInterval: defaultPollInterval,
		logger:       logger.Named("solbc-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RPC возвращает исходный клиент solana-go.
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// GetLatestBlockhash получает последний blockhash и его lastValidBlockHeight.
func (c *Client) GetLatestBlockhash(ctx context.Context) (*blockchain.Blockhash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return nil, err
	}
	if result == nil || result.Value == nil {
		return nil, fmt.Errorf("empty blockhash response")
	}
	return &blockchain.Blockhash{
		Hash:                 result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// SendTransaction отправляет транзакцию с preflight на текущем commitment.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		c.logger.Error("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// ConfirmTransaction опрашивает статус подписи, пока транзакция не достигнет
// commitment клиента, не будет отклонена или пока текущая высота блока не
// превысит lastValidBlockHeight. Если высоту блока не удаётся получить
// maxPollErrors раз подряд, транзакция считается неподтверждённой.
func (c *Client) ConfirmTransaction(ctx context.Context, sig solana.Signature, bh blockchain.Blockhash) (*blockchain.Confirmation, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var heightErrors int
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		statuses, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			c.logger.Warn("Error getting signature statuses", zap.Error(err))
		} else if statuses != nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return &blockchain.Confirmation{Err: fmt.Errorf("transaction failed: %v", status.Err)}, nil
			}
			if reached(status.ConfirmationStatus, c.commitment) {
				return &blockchain.Confirmation{Confirmed: true}, nil
			}
		}

		height, err := c.rpc.GetBlockHeight(ctx, c.commitment)
		if err != nil {
			heightErrors++
			c.logger.Warn("Error getting block height", zap.Int("failures", heightErrors), zap.Error(err))
			if heightErrors >= maxPollErrors {
				return &blockchain.Confirmation{Err: fmt.Errorf("block height unavailable: %w", err)}, nil
			}
			continue
		}
		heightErrors = 0
		if height > bh.LastValidBlockHeight {
			c.logger.Debug("Blockhash expired before confirmation",
				zap.String("signature", sig.String()),
				zap.Uint64("block_height", height),
				zap.Uint64("last_valid_block_height", bh.LastValidBlockHeight))
			return &blockchain.Confirmation{}, nil
		}
	}
}

// reached сообщает, достиг ли статус подписи требуемого commitment.
func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch status {
	case rpc.ConfirmationStatusFinalized:
		return true
	case rpc.ConfirmationStatusConfirmed:
		return want != rpc.CommitmentFinalized
	case rpc.ConfirmationStatusProcessed:
		return want == rpc.CommitmentProcessed
	default:
		return false
	}
}

// GetAccountInfo получает информацию об аккаунте.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	result, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		c.logger.Debug("GetAccountInfo error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// GetAccountDataInto получает данные аккаунта и декодирует их в указанную структуру.
func (c *Client) GetAccountDataInto(ctx context.Context, pubkey solana.PublicKey, dst interface{}) error {
	if err := c.rpc.GetAccountDataInto(ctx, pubkey, dst); err != nil {
		c.logger.Debug("GetAccountDataInto error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return err
	}
	return nil
}

// GetMultipleAccounts получает информацию о нескольких аккаунтах за один запрос
func (c *Client) GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	if len(pubkeys) == 0 {
		return &rpc.GetMultipleAccountsResult{}, nil
	}
	res, err := c.rpc.GetMultipleAccountsWithOpts(ctx, pubkeys, &rpc.GetMultipleAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		c.logger.Debug("GetMultipleAccounts error", zap.Error(err))
		return nil, err
	}
	return res, nil
}

// GetProgramAccountsWithOpts получает все аккаунты программы с опциями фильтрации
func (c *Client) GetProgramAccountsWithOpts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	accounts, err := c.rpc.GetProgramAccountsWithOpts(ctx, programID, opts)
	if err != nil {
		c.logger.Debug("GetProgramAccountsWithOpts error",
			zap.String("program_id", programID.String()),
			zap.Error(err))
		return nil, err
	}
	return accounts, nil
}

// GetTokenSupply возвращает эмиссию токена в минимальных единицах.
func (c *Client) GetTokenSupply(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetTokenSupply(ctx, mint, c.commitment)
	if err != nil {
		return 0, err
	}
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("empty token supply response for %s", mint)
	}
	return strconv.ParseUint(res.Value.Amount, 10, 64)
}

// GetTokenAccountBalance получает баланс токенного аккаунта
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetTokenAccountBalance(ctx, account, c.commitment)
	if err != nil {
		return 0, err
	}
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("empty token balance response for %s", account)
	}
	return strconv.ParseUint(res.Value.Amount, 10, 64)
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
