package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finex_go/internal/app"
	"finex_go/internal/infra"
	"finex_go/internal/infra/bitfinex"
	"finex_go/internal/service"
)

func main() {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config

	// 3. Background Asset Sync
	currencies := make([]string, 0, len(cfg.Portfolio.Balances))
	for currency := range cfg.Portfolio.Balances {
		currencies = append(currencies, currency)
	}
	go bootstrap.SyncAssets(ctx, currencies)

	// 4. Portfolio Valuation (REST)
	client := bitfinex.NewClient(cfg)
	portfolio := service.NewPortfolioService(client, cfg)
	portfolio.SeedCatalog(bootstrap.WarmStartCatalog())

	totals := portfolio.CalculatePortfolio(ctx)
	for currency, total := range totals {
		slog.Info("💰 Portfolio value",
			slog.String("currency", currency),
			slog.String("total", total.String()))
	}
	bootstrap.PersistUniverse(portfolio.Universe())

	// 5. Streaming Feed
	feed := bitfinex.NewFeed(cfg)
	if err := feed.Connect(ctx); err != nil {
		slog.Error("❌ Feed connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer feed.Close()

	for _, symbol := range cfg.Subscriptions.Trades {
		if err := feed.SubscribeTrades(symbol); err != nil {
			slog.Error("Failed to subscribe trades",
				slog.String("symbol", symbol), slog.Any("error", err))
		}
	}
	for _, sub := range cfg.Subscriptions.Candles {
		if err := feed.SubscribeCandles(sub.Symbol, sub.Timeframe); err != nil {
			slog.Error("Failed to subscribe candles",
				slog.String("symbol", sub.Symbol), slog.Any("error", err))
		}
	}

	// 6. Frame Consumer
	go func() {
		for frame := range feed.Messages() {
			slog.Info("📡 Frame", slog.String("payload", frame))
		}
	}()

	// 7. Periodic Revaluation
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				totals := portfolio.CalculatePortfolio(ctx)
				for currency, total := range totals {
					slog.Info("💰 Portfolio value",
						slog.String("currency", currency),
						slog.String("total", total.String()))
				}
				bootstrap.PersistUniverse(portfolio.Universe())
			}
		}
	}()

	slog.InfoContext(ctx, "✨ Finex Go fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	snap := infra.GlobalMetrics.Snapshot()
	slog.Info("👋 Shutting down gracefully...",
		slog.Uint64("rest_requests", snap.RestRequests),
		slog.Uint64("frames_received", snap.FramesReceived),
		slog.Uint64("valuation_passes", snap.ValuationPasses))
}
