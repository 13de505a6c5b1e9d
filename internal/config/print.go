// internal/config/print.go
package config

import (
	"go.uber.org/zap"
)

// Print logs the effective configuration. Secrets are redacted.
func (c *Config) Print(logger *zap.Logger) {
	quote, _ := c.QuoteMint()
	tp := c.Sell.TakeProfit

	logger.Info("Configuration",
		zap.String("wallet", redact(c.Wallet.PrivateKey)),
		zap.String("rpc_endpoint", c.RPC.Endpoint),
		zap.String("ws_endpoint", c.RPC.WebsocketEndpoint),
		zap.String("commitment", c.RPC.Commitment),
		zap.String("executor", c.Bot.Executor),
		zap.Bool("single_position", c.Bot.SinglePosition),
		zap.Bool("auto_sell", c.Bot.AutoSell),
		zap.Bool("pre_load_existing_markets", c.Bot.PreLoadExistingMarkets),
		zap.Bool("cache_new_markets", c.Bot.CacheNewMarkets))

	logger.Info("Buy",
		zap.String("quote_token", quote.Symbol),
		zap.Float64("quote_amount", c.Buy.QuoteAmount),
		zap.Int("max_retries", c.Buy.MaxRetries),
		zap.Float64("slippage", c.Buy.Slippage),
		zap.Int("delay_ms", c.Buy.DelayMs),
		zap.Bool("custom_tips", c.Fees.SetCustomTips),
		zap.Uint32("compute_unit_limit", c.Fees.ComputeUnitLimit),
		zap.Uint64("compute_unit_price", c.Fees.ComputeUnitPrice))

	logger.Info("Sell",
		zap.Int("max_retries", c.Sell.MaxRetries),
		zap.Float64("slippage", c.Sell.Slippage),
		zap.Int("delay_ms", c.Sell.DelayMs),
		zap.Float64("stop_loss", c.Sell.StopLoss),
		zap.Bool("take_profit", tp.Enabled),
		zap.Float64("tranche1_after_gain", tp.Tranche1.AfterGain),
		zap.Float64("tranche1_percentage", tp.Tranche1.Percentage),
		zap.Float64("tranche2_after_gain", tp.Tranche2.AfterGain),
		zap.Float64("tranche2_percentage", tp.Tranche2.Percentage),
		zap.Float64("fee_percentage", tp.FeePercentage),
		zap.String("fee_wallet", tp.FeeWallet))

	if c.SnipeList.Enabled {
		logger.Info("Snipe list",
			zap.String("path", c.SnipeList.Path),
			zap.String("refresh", c.SnipeList.Refresh))
	} else {
		logger.Info("Filters",
			zap.Bool("check_renounced", c.Filters.CheckRenounced),
			zap.Bool("check_freezable", c.Filters.CheckFreezable),
			zap.Bool("check_burned", c.Filters.CheckBurned),
			zap.Float64("min_pool_size", c.Filters.MinPoolSize),
			zap.Float64("max_pool_size", c.Filters.MaxPoolSize))
	}

	if c.Risk.Enabled {
		logger.Info("Risk check",
			zap.Float64("max_score", c.Risk.MaxScore),
			zap.String("base_url", c.Risk.BaseURL))
	}

	logger.Info("Services",
		zap.String("server_addr", c.Server.Addr),
		zap.Bool("redis", c.Redis.URL != ""),
		zap.Bool("postgres", c.Postgres.URL != ""),
		zap.String("export_dir", c.Export.Dir),
		zap.String("license", redact(c.License.Key)))
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
