package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"finex_go/internal/domain"
	"finex_go/internal/infra"
	"finex_go/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Downloader *infra.IconDownloader
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Finex Go...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage()
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Initialize Icon Downloader
	downloader, err := infra.NewIconDownloader()
	if err != nil {
		return err
	}
	b.Downloader = downloader
	slog.Info("✅ Icon downloader ready")

	return nil
}

// WarmStartCatalog rebuilds a catalog from the symbols persisted during
// previous runs, so valuation route checks work before the first live
// snapshot arrives. Returns an empty catalog on a cold start.
func (b *Bootstrap) WarmStartCatalog() *domain.Catalog {
	symbols, err := b.Storage.ActiveSymbols()
	if err != nil {
		slog.Warn("Failed to load persisted symbols", slog.Any("error", err))
		return domain.NewCatalog(nil)
	}
	if len(symbols) > 0 {
		slog.Info("♻️ Catalog warm-started", slog.Int("symbols", len(symbols)))
	}
	return domain.NewCatalog(symbols)
}

// SyncAssets persists the held currencies and fetches their icons in the
// background
func (b *Bootstrap) SyncAssets(ctx context.Context, currencies []string) {
	slog.Info("🔄 Starting asset synchronization...")

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, currency := range currencies {
		wg.Add(1)
		go func(cur string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			path, err := b.Downloader.DownloadIcon(cur)
			if err != nil {
				slog.Warn("Failed to download icon",
					slog.String("currency", cur), slog.Any("error", err))
				return
			}

			inst := &domain.InstrumentInfo{
				Symbol:   domain.NormalizeSymbol(cur + "USD"),
				Currency: cur,
				IsActive: true,
			}
			// Preserve user state on re-sync
			if existing, _ := b.Storage.GetInstrument(inst.Symbol); existing != nil {
				inst.IsFavorite = existing.IsFavorite
				inst.LastSeenAt = existing.LastSeenAt
			}
			inst.IconPath = path
			if err := b.Storage.UpsertInstrument(inst); err != nil {
				slog.Error("Failed to upsert instrument",
					slog.String("currency", cur), slog.Any("error", err))
			}
		}(currency)
	}

	wg.Wait()
	slog.Info("✅ Asset synchronization complete")
}

// PersistUniverse records a fresh symbol universe for the next warm start.
func (b *Bootstrap) PersistUniverse(symbols []string) {
	if len(symbols) == 0 {
		return
	}
	if err := b.Storage.SyncUniverse(symbols, time.Now().UTC()); err != nil {
		slog.Warn("Failed to persist symbol universe", slog.Any("error", err))
		return
	}
	slog.Info("💾 Symbol universe persisted", slog.Int("symbols", len(symbols)))
}

// Shutdown releases held resources
func (b *Bootstrap) Shutdown() {
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Failed to close storage", slog.Any("error", err))
		}
	}
}
