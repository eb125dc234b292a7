package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"finex_go/internal/domain"
	"finex_go/internal/infra"
)

// PortfolioService values a set of asset balances in each configured target
// currency from a live ticker snapshot. Conversion uses direct pairs where
// listed and routes through BTC otherwise.
type PortfolioService struct {
	source   domain.TickerSource
	balances map[string]decimal.Decimal
	targets  []string

	mu          sync.Mutex
	lastCatalog *domain.Catalog

	logger *slog.Logger
}

// NewPortfolioService wires the service to a snapshot source and the
// configured holdings.
func NewPortfolioService(source domain.TickerSource, cfg *infra.Config) *PortfolioService {
	balances := make(map[string]decimal.Decimal, len(cfg.Portfolio.Balances))
	for currency, qty := range cfg.Portfolio.Balances {
		balances[currency] = qty
	}

	return &PortfolioService{
		source:   source,
		balances: balances,
		targets:  cfg.Portfolio.TargetCurrencies,
		logger:   slog.Default().With("module", "portfolio_service"),
	}
}

// SeedCatalog installs a catalog recovered from persistent storage. A live
// snapshot replaces it on the next valuation pass.
func (s *PortfolioService) SeedCatalog(catalog *domain.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCatalog == nil {
		s.lastCatalog = catalog
	}
}

// CalculatePortfolio computes the total portfolio value in every target
// currency, rounded to 2 decimal places. Best-effort: a failed snapshot
// yields an empty result, and balances with no conversion route are skipped
// rather than poisoning the total.
func (s *PortfolioService) CalculatePortfolio(ctx context.Context) map[string]decimal.Decimal {
	snapshot, ok := s.source.GetAllTickers(ctx)
	if !ok {
		s.logger.Warn("valuation skipped, ticker snapshot unavailable")
		return map[string]decimal.Decimal{}
	}

	catalog := domain.CatalogFromSnapshot(snapshot)
	s.mu.Lock()
	s.lastCatalog = catalog
	s.mu.Unlock()

	result := make(map[string]decimal.Decimal, len(s.targets))
	for _, target := range s.targets {
		total := decimal.Zero
		for currency, qty := range s.balances {
			if currency == target {
				total = total.Add(qty)
				continue
			}

			rate := s.conversionRate(catalog, snapshot, currency, target)
			if !rate.IsPositive() {
				infra.GlobalMetrics.RecordBalanceSkipped()
				s.logger.Debug("no conversion route",
					slog.String("from", currency), slog.String("to", target))
				continue
			}
			total = total.Add(qty.Mul(rate))
		}
		result[target] = total.Round(2)
	}

	infra.GlobalMetrics.RecordValuationPass()
	return result
}

// conversionRate resolves base into quote using the last traded price of a
// direct pair when one is listed, otherwise combining the BTC legs of both
// currencies. Returns zero when no route exists.
func (s *PortfolioService) conversionRate(catalog *domain.Catalog, snapshot domain.TickerSnapshot, base, quote string) decimal.Decimal {
	if pair, ok := catalog.ValidPair(base, quote); ok {
		if ticker := snapshot[pair]; ticker != nil {
			return ticker.LastPrice
		}
	}

	baseLeg := s.legPrice(catalog, snapshot, base)
	quoteLeg := s.legPrice(catalog, snapshot, quote)
	if !baseLeg.IsPositive() || !quoteLeg.IsPositive() {
		return decimal.Zero
	}

	if base == domain.HubCurrency {
		return quoteLeg
	}
	return baseLeg.Mul(quoteLeg)
}

func (s *PortfolioService) legPrice(catalog *domain.Catalog, snapshot domain.TickerSnapshot, currency string) decimal.Decimal {
	if currency == domain.HubCurrency {
		return decimal.NewFromInt(1)
	}
	pair, ok := catalog.ValidPair(currency, domain.HubCurrency)
	if !ok {
		return decimal.Zero
	}
	ticker := snapshot[pair]
	if ticker == nil {
		return decimal.Zero
	}
	return ticker.LastPrice
}

// Universe returns the trading symbols seen in the most recent snapshot,
// for persisting instrument metadata. Empty before the first valuation.
func (s *PortfolioService) Universe() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCatalog == nil {
		return nil
	}
	return s.lastCatalog.Symbols()
}
