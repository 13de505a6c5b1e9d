// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/raydium-sniper/internal/position"
)

type Config struct {
	Wallet    WalletConfig    `mapstructure:"wallet"`
	RPC       RPCConfig       `mapstructure:"rpc"`
	Bot       BotConfig       `mapstructure:"bot"`
	Fees      FeesConfig      `mapstructure:"fees"`
	Buy       BuyConfig       `mapstructure:"buy"`
	Sell      SellConfig      `mapstructure:"sell"`
	Filters   FiltersConfig   `mapstructure:"filters"`
	Risk      RiskConfig      `mapstructure:"risk"`
	SnipeList SnipeListConfig `mapstructure:"snipe_list"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	License   LicenseConfig   `mapstructure:"license"`
	Export    ExportConfig    `mapstructure:"export"`
}

type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

type RPCConfig struct {
	Endpoint          string `mapstructure:"endpoint"`
	WebsocketEndpoint string `mapstructure:"websocket_endpoint"`
	Commitment        string `mapstructure:"commitment"`
	ConfirmPollMs     int    `mapstructure:"confirm_poll_ms"`
}

type BotConfig struct {
	SinglePosition         bool   `mapstructure:"single_position"`
	AutoSell               bool   `mapstructure:"auto_sell"`
	PreLoadExistingMarkets bool   `mapstructure:"pre_load_existing_markets"`
	CacheNewMarkets        bool   `mapstructure:"cache_new_markets"`
	Executor               string `mapstructure:"executor"`
}

type FeesConfig struct {
	SetCustomTips    bool   `mapstructure:"set_custom_tips"`
	ComputeUnitLimit uint32 `mapstructure:"compute_unit_limit"`
	ComputeUnitPrice uint64 `mapstructure:"compute_unit_price"`
}

type BuyConfig struct {
	QuoteMint   string  `mapstructure:"quote_mint"`
	QuoteAmount float64 `mapstructure:"quote_amount"`
	MaxRetries  int     `mapstructure:"max_retries"`
	Slippage    float64 `mapstructure:"slippage"`
	DelayMs     int     `mapstructure:"delay_ms"`
}

type TrancheConfig struct {
	AfterGain  float64 `mapstructure:"after_gain"`
	Percentage float64 `mapstructure:"percentage"`
}

type TakeProfitConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Tranche1      TrancheConfig `mapstructure:"tranche1"`
	Tranche2      TrancheConfig `mapstructure:"tranche2"`
	FeePercentage float64       `mapstructure:"fee_percentage"`
	FeeWallet     string        `mapstructure:"fee_wallet"`
}

type SellConfig struct {
	MaxRetries int              `mapstructure:"max_retries"`
	Slippage   float64          `mapstructure:"slippage"`
	DelayMs    int              `mapstructure:"delay_ms"`
	StopLoss   float64          `mapstructure:"stop_loss"`
	TakeProfit TakeProfitConfig `mapstructure:"take_profit"`
}

type FiltersConfig struct {
	CheckRenounced bool    `mapstructure:"check_renounced"`
	CheckFreezable bool    `mapstructure:"check_freezable"`
	CheckBurned    bool    `mapstructure:"check_burned"`
	MinPoolSize    float64 `mapstructure:"min_pool_size"`
	MaxPoolSize    float64 `mapstructure:"max_pool_size"`
}

type RiskConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	MaxScore  float64 `mapstructure:"max_score"`
	BaseURL   string  `mapstructure:"base_url"`
	TimeoutMs int     `mapstructure:"timeout_ms"`
}

type SnipeListConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Refresh string `mapstructure:"refresh"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// ExportConfig enables the daily trade report. An empty Dir disables it.
type ExportConfig struct {
	Dir      string `mapstructure:"dir"`
	Schedule string `mapstructure:"schedule"`
}

type LicenseConfig struct {
	Key     string `mapstructure:"key"`
	Account string `mapstructure:"account"`
	Product string `mapstructure:"product"`
	Token   string `mapstructure:"token"`
}

const (
	DefaultConfirmPollMs    = 500
	DefaultComputeUnitLimit = 101337
	DefaultComputeUnitPrice = 421197
	DefaultMaxRetries       = 10
	DefaultSlippage         = 20
	DefaultRiskBaseURL      = "https://api.rugcheck.xyz"
	DefaultRiskTimeoutMs    = 3000
	DefaultSnipeListRefresh = "@every 30s"
	DefaultExportSchedule   = "@daily"
	DefaultEnvPrefix        = "SNIPER"
)

var defaults = map[string]interface{}{
	"wallet.private_key": "",

	"rpc.endpoint":           "https://api.mainnet-beta.solana.com",
	"rpc.websocket_endpoint": "wss://api.mainnet-beta.solana.com",
	"rpc.commitment":         "confirmed",
	"rpc.confirm_poll_ms":    DefaultConfirmPollMs,

	"bot.single_position":           true,
	"bot.auto_sell":                 true,
	"bot.pre_load_existing_markets": false,
	"bot.cache_new_markets":         false,
	"bot.executor":                  "default",

	"fees.set_custom_tips":    true,
	"fees.compute_unit_limit": DefaultComputeUnitLimit,
	"fees.compute_unit_price": DefaultComputeUnitPrice,

	"buy.quote_mint":   "WSOL",
	"buy.quote_amount": 0.01,
	"buy.max_retries":  DefaultMaxRetries,
	"buy.slippage":     DefaultSlippage,
	"buy.delay_ms":     0,

	"sell.max_retries":                     DefaultMaxRetries,
	"sell.slippage":                        DefaultSlippage,
	"sell.delay_ms":                        0,
	"sell.stop_loss":                       0,
	"sell.take_profit.enabled":             true,
	"sell.take_profit.tranche1.after_gain": 50,
	"sell.take_profit.tranche1.percentage": 50,
	"sell.take_profit.tranche2.after_gain": 100,
	"sell.take_profit.tranche2.percentage": 100,
	"sell.take_profit.fee_percentage":      0,
	"sell.take_profit.fee_wallet":          "",

	"filters.check_renounced": true,
	"filters.check_freezable": true,
	"filters.check_burned":    true,
	"filters.min_pool_size":   0,
	"filters.max_pool_size":   0,

	"risk.enabled":    false,
	"risk.max_score":  0,
	"risk.base_url":   DefaultRiskBaseURL,
	"risk.timeout_ms": DefaultRiskTimeoutMs,

	"snipe_list.enabled": false,
	"snipe_list.path":    "snipe-list.txt",
	"snipe_list.refresh": DefaultSnipeListRefresh,

	"log.level":        "info",
	"log.file":         "",
	"log.max_size_mb":  100,
	"log.max_backups":  3,
	"log.max_age_days": 28,

	"server.addr":  "",
	"redis.url":    "",
	"postgres.url": "",

	"export.dir":      "",
	"export.schedule": DefaultExportSchedule,

	"license.key":     "",
	"license.account": "",
	"license.product": "",
	"license.token":   "",
}

// Load reads configuration from path (optional), .env and SNIPER_* env
// variables, in increasing precedence, and validates the result.
func Load(path string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Wallet.PrivateKey == "" {
		return errors.New("wallet.private_key is required")
	}
	if err := validateURL(c.RPC.Endpoint, "http"); err != nil {
		return fmt.Errorf("rpc.endpoint: %w", err)
	}
	if err := validateURL(c.RPC.WebsocketEndpoint, "ws"); err != nil {
		return fmt.Errorf("rpc.websocket_endpoint: %w", err)
	}
	switch c.RPC.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid rpc.commitment %q", c.RPC.Commitment)
	}
	if c.RPC.ConfirmPollMs <= 0 {
		return errors.New("invalid rpc.confirm_poll_ms")
	}

	if _, err := c.QuoteMint(); err != nil {
		return err
	}
	if c.Buy.QuoteAmount <= 0 {
		return errors.New("buy.quote_amount must be positive")
	}
	if c.Buy.MaxRetries < 1 {
		return errors.New("buy.max_retries must be at least 1")
	}
	if c.Sell.MaxRetries < 1 {
		return errors.New("sell.max_retries must be at least 1")
	}
	if c.Buy.DelayMs < 0 || c.Sell.DelayMs < 0 {
		return errors.New("delays must be non-negative")
	}

	for name, pct := range map[string]float64{
		"buy.slippage":                         c.Buy.Slippage,
		"sell.slippage":                        c.Sell.Slippage,
		"sell.stop_loss":                       c.Sell.StopLoss,
		"sell.take_profit.tranche1.after_gain": c.Sell.TakeProfit.Tranche1.AfterGain,
		"sell.take_profit.tranche2.after_gain": c.Sell.TakeProfit.Tranche2.AfterGain,
		"sell.take_profit.fee_percentage":      c.Sell.TakeProfit.FeePercentage,
		"filters.min_pool_size":                c.Filters.MinPoolSize,
		"filters.max_pool_size":                c.Filters.MaxPoolSize,
		"risk.max_score":                       c.Risk.MaxScore,
	} {
		if pct < 0 || math.IsNaN(pct) || math.IsInf(pct, 0) {
			return fmt.Errorf("%s must be a non-negative number", name)
		}
	}

	tp := c.Sell.TakeProfit
	for name, pct := range map[string]float64{
		"sell.take_profit.tranche1.percentage": tp.Tranche1.Percentage,
		"sell.take_profit.tranche2.percentage": tp.Tranche2.Percentage,
	} {
		if pct <= 0 || pct > 100 {
			return fmt.Errorf("%s must be in (0, 100]", name)
		}
	}
	if tp.Tranche2.AfterGain < tp.Tranche1.AfterGain {
		return errors.New("sell.take_profit.tranche2.after_gain must not be below tranche1")
	}
	if tp.FeePercentage > 100 {
		return errors.New("sell.take_profit.fee_percentage must not exceed 100")
	}

	switch c.Bot.Executor {
	case "default":
	case "fee":
		if tp.FeeWallet == "" {
			return errors.New("sell.take_profit.fee_wallet is required for the fee executor")
		}
	default:
		return fmt.Errorf("unknown bot.executor %q", c.Bot.Executor)
	}
	if tp.FeeWallet != "" {
		if _, err := solana.PublicKeyFromBase58(tp.FeeWallet); err != nil {
			return fmt.Errorf("invalid sell.take_profit.fee_wallet: %w", err)
		}
	}

	if c.Filters.MaxPoolSize > 0 && c.Filters.MinPoolSize > c.Filters.MaxPoolSize {
		return errors.New("filters.min_pool_size exceeds filters.max_pool_size")
	}

	if c.Risk.Enabled {
		if err := validateURL(c.Risk.BaseURL, "http"); err != nil {
			return fmt.Errorf("risk.base_url: %w", err)
		}
	}
	if c.SnipeList.Enabled && c.SnipeList.Path == "" {
		return errors.New("snipe_list.path is required when the snipe list is enabled")
	}
	if c.Export.Dir != "" && c.Export.Schedule == "" {
		return errors.New("export.schedule is required with export.dir")
	}
	if c.License.Key != "" && (c.License.Account == "" || c.License.Product == "") {
		return errors.New("license.account and license.product are required with license.key")
	}
	return nil
}

func validateURL(rawURL, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	return nil
}

// QuoteMint resolves buy.quote_mint to a mint address and its decimals.
func (c *Config) QuoteMint() (QuoteToken, error) {
	switch strings.ToUpper(c.Buy.QuoteMint) {
	case "WSOL":
		return QuoteToken{Symbol: "WSOL", Mint: raydium.WrappedSolMint, Decimals: 9}, nil
	case "USDC":
		return QuoteToken{Symbol: "USDC", Mint: raydium.USDCMint, Decimals: 6}, nil
	default:
		return QuoteToken{}, fmt.Errorf("unsupported buy.quote_mint %q (WSOL or USDC)", c.Buy.QuoteMint)
	}
}

// QuoteToken is the token every pool is bought with.
type QuoteToken struct {
	Symbol   string
	Mint     solana.PublicKey
	Decimals uint8
}

// Raw converts a UI amount into the token's smallest units.
func (q QuoteToken) Raw(amount float64) uint64 {
	return uint64(math.Round(amount * math.Pow10(int(q.Decimals))))
}

// Thresholds derives the exit rules.
func (c *Config) Thresholds() position.Thresholds {
	tp := c.Sell.TakeProfit
	return position.Thresholds{
		StopLossPct:       c.Sell.StopLoss,
		TakeProfitEnabled: tp.Enabled,
		First:             position.TakeProfit{AfterGainPct: tp.Tranche1.AfterGain, SellPct: tp.Tranche1.Percentage},
		Second:            position.TakeProfit{AfterGainPct: tp.Tranche2.AfterGain, SellPct: tp.Tranche2.Percentage},
		FeeOnProfitPct:    tp.FeePercentage,
	}
}

// FeeWallet returns the fee recipient, zero when unset.
func (c *Config) FeeWallet() solana.PublicKey {
	if c.Sell.TakeProfit.FeeWallet == "" {
		return solana.PublicKey{}
	}
	return solana.MustPublicKeyFromBase58(c.Sell.TakeProfit.FeeWallet)
}
