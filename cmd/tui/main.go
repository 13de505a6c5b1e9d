package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rovshanmuradov/raydium-sniper/internal/bot"
	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/logger"
	"github.com/rovshanmuradov/raydium-sniper/internal/ui"
)

const (
	logLines   = 200
	feedBuffer = 256
)

func main() {
	configPath := flag.String("config", "", "Path to config file (yaml, json or toml)")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	ring := logger.NewRing(logLines)

	// stdout belongs to the TUI; logs go to the file and the log pane.
	appLogger, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   true,
	}, ring.Core(level))
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	runner := bot.NewRunner(cfg, appLogger)
	defer runner.Shutdown()

	if err := runner.Initialize(rootCtx); err != nil {
		appLogger.Error("Failed to initialize bot", zap.Error(err))
		return
	}

	feed := ui.NewFeed(runner.Bus(), feedBuffer, appLogger)
	defer feed.Close()

	quote := runner.Quote()
	model := ui.NewModel(ui.Source{
		Wallet: runner.Wallet().PublicKey.String(),
		Quote:  quote.Symbol,
		Gate:   runner.Bot().Gate(),
		Ledger: runner.Bot().Ledger(),
		Logs:   ring,
	}, feed.Messages())

	ctx, cancel := context.WithCancel(rootCtx)
	defer cancel()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error("Bot execution error", zap.Error(err))
		}
		program.Quit()
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		appLogger.Error("TUI application failed", zap.Error(err))
	}
	cancel()
	<-done
	appLogger.Info("Shutting down TUI application")
}
