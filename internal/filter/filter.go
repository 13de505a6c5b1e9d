// internal/filter/filter.go
package filter

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

// Client is the chain access the filters need.
type Client interface {
	GetAccountDataInto(ctx context.Context, pubkey solana.PublicKey, dst interface{}) error
	GetTokenSupply(ctx context.Context, mint solana.PublicKey) (uint64, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Result is the verdict of a single filter.
type Result struct {
	OK      bool
	Message string
}

func pass() Result { return Result{OK: true} }

func fail(format string, args ...interface{}) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// Filter checks one property of a pool.
type Filter interface {
	Name() string
	Execute(ctx context.Context, keys *raydium.PoolKeys) Result
}

// Config selects the filters.
type Config struct {
	CheckRenounced bool
	CheckFreezable bool
	CheckBurned    bool
	// Pool size bounds in raw quote units; zero disables a bound.
	MinPoolSize uint64
	MaxPoolSize uint64
}

// PoolFilters runs every configured filter concurrently.
type PoolFilters struct {
	filters []Filter
	logger  *zap.Logger
}

// New builds the filter set from cfg.
func New(client Client, cfg Config, logger *zap.Logger) *PoolFilters {
	logger = logger.Named("filters")

	var filters []Filter
	if cfg.CheckRenounced || cfg.CheckFreezable {
		filters = append(filters, &mintAuthorityFilter{
			client:         client,
			checkRenounced: cfg.CheckRenounced,
			checkFreezable: cfg.CheckFreezable,
		})
	}
	if cfg.CheckBurned {
		filters = append(filters, &burnFilter{client: client})
	}
	if cfg.MinPoolSize > 0 || cfg.MaxPoolSize > 0 {
		filters = append(filters, &poolSizeFilter{client: client, min: cfg.MinPoolSize, max: cfg.MaxPoolSize})
	}
	return NewWith(logger, filters...)
}

// NewWith wraps an explicit filter list.
func NewWith(logger *zap.Logger, filters ...Filter) *PoolFilters {
	return &PoolFilters{filters: filters, logger: logger}
}

// Len returns the number of active filters.
func (p *PoolFilters) Len() int { return len(p.filters) }

// Execute reports whether every filter passes. No filters means pass.
func (p *PoolFilters) Execute(ctx context.Context, keys *raydium.PoolKeys) bool {
	if len(p.filters) == 0 {
		return true
	}

	results := make([]Result, len(p.filters))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range p.filters {
		g.Go(func() error {
			results[i] = f.Execute(gctx, keys)
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		if !r.OK {
			p.logger.Debug("Pool filtered out",
				zap.String("mint", keys.BaseMint.String()),
				zap.String("filter", p.filters[i].Name()),
				zap.String("reason", r.Message))
			return false
		}
	}
	return true
}

// mintAuthorityFilter checks the base mint's mint and freeze authorities.
type mintAuthorityFilter struct {
	client         Client
	checkRenounced bool
	checkFreezable bool
}

func (f *mintAuthorityFilter) Name() string { return "mint_authority" }

func (f *mintAuthorityFilter) Execute(ctx context.Context, keys *raydium.PoolKeys) Result {
	var mint token.Mint
	if err := f.client.GetAccountDataInto(ctx, keys.BaseMint, &mint); err != nil {
		return fail("failed to fetch mint: %v", err)
	}
	if f.checkRenounced && mint.MintAuthority != nil {
		return fail("mint authority not renounced")
	}
	if f.checkFreezable && mint.FreezeAuthority != nil {
		return fail("token is freezable")
	}
	return pass()
}

// burnFilter requires the LP supply to be burned.
type burnFilter struct {
	client Client
}

func (f *burnFilter) Name() string { return "burn" }

func (f *burnFilter) Execute(ctx context.Context, keys *raydium.PoolKeys) Result {
	supply, err := f.client.GetTokenSupply(ctx, keys.LpMint)
	if err != nil {
		return fail("failed to fetch lp supply: %v", err)
	}
	if supply != 0 {
		return fail("lp not burned, supply %d", supply)
	}
	return pass()
}

// poolSizeFilter bounds the quote vault balance.
type poolSizeFilter struct {
	client Client
	min    uint64
	max    uint64
}

func (f *poolSizeFilter) Name() string { return "pool_size" }

func (f *poolSizeFilter) Execute(ctx context.Context, keys *raydium.PoolKeys) Result {
	size, err := f.client.GetTokenAccountBalance(ctx, keys.QuoteVault)
	if err != nil {
		return fail("failed to fetch pool size: %v", err)
	}
	if f.max > 0 && size > f.max {
		return fail("pool size %d above %d", size, f.max)
	}
	if f.min > 0 && size < f.min {
		return fail("pool size %d below %d", size, f.min)
	}
	return pass()
}
