// cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/bot"
	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   true,
		Console:    true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	log.Info("Starting sniper bot")
	cfg.Print(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := bot.NewRunner(cfg, log)
	defer runner.Shutdown()

	if err := runner.Initialize(ctx); err != nil {
		log.Error("Failed to initialize bot", zap.Error(err))
		exit(runner, 1)
	}

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Bot execution error", zap.Error(err))
		exit(runner, 1)
	}
}

// exit runs the deferred shutdown that os.Exit would skip.
func exit(runner *bot.Runner, code int) {
	runner.Shutdown()
	os.Exit(code)
}
