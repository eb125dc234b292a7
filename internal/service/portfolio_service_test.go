package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finex_go/internal/domain"
	"finex_go/internal/infra"
)

type fakeSource struct {
	snapshot domain.TickerSnapshot
	ok       bool
}

func (f *fakeSource) GetAllTickers(ctx context.Context) (domain.TickerSnapshot, bool) {
	return f.snapshot, f.ok
}

func snapshotOf(prices map[string]string) domain.TickerSnapshot {
	snap := make(domain.TickerSnapshot, len(prices))
	for symbol, last := range prices {
		snap[symbol] = &domain.Ticker{
			Symbol:    symbol,
			LastPrice: decimal.RequireFromString(last),
		}
	}
	return snap
}

func newService(source domain.TickerSource, balances map[string]string, targets []string) *PortfolioService {
	cfg := &infra.Config{}
	cfg.Portfolio.Balances = make(map[string]decimal.Decimal, len(balances))
	for currency, qty := range balances {
		cfg.Portfolio.Balances[currency] = decimal.RequireFromString(qty)
	}
	cfg.Portfolio.TargetCurrencies = targets
	return NewPortfolioService(source, cfg)
}

func TestCalculatePortfolioDirectPairs(t *testing.T) {
	source := &fakeSource{
		ok: true,
		snapshot: snapshotOf(map[string]string{
			"tBTCUSD": "60000",
			"tXRPUSD": "0.5",
		}),
	}
	svc := newService(source, map[string]string{"BTC": "1", "XRP": "15000"}, []string{"USD"})

	result := svc.CalculatePortfolio(context.Background())
	require.Len(t, result, 1)

	// 1 * 60000 + 15000 * 0.5
	assert.True(t, result["USD"].Equal(decimal.RequireFromString("67500.00")),
		"got %s", result["USD"])
}

func TestCalculatePortfolioIdentityTarget(t *testing.T) {
	source := &fakeSource{
		ok: true,
		snapshot: snapshotOf(map[string]string{
			"tBTCUSD": "60000",
		}),
	}
	svc := newService(source, map[string]string{"BTC": "2.5"}, []string{"BTC"})

	result := svc.CalculatePortfolio(context.Background())
	assert.True(t, result["BTC"].Equal(decimal.RequireFromString("2.5")),
		"got %s", result["BTC"])
}

func TestCalculatePortfolioRoutesThroughHub(t *testing.T) {
	source := &fakeSource{
		ok: true,
		snapshot: snapshotOf(map[string]string{
			"tXMRBTC": "0.005",
			"tBTCUSD": "60000",
		}),
	}
	svc := newService(source, map[string]string{"XMR": "1"}, []string{"USD"})

	result := svc.CalculatePortfolio(context.Background())
	// no direct XMR/USD pair, so 0.005 BTC per XMR at 60000 USD per BTC
	assert.True(t, result["USD"].Equal(decimal.RequireFromString("300.00")),
		"got %s", result["USD"])
}

func TestCalculatePortfolioAllTargetsPresent(t *testing.T) {
	source := &fakeSource{
		ok: true,
		snapshot: snapshotOf(map[string]string{
			"tBTCUSD": "60000",
			"tXRPBTC": "0.0000085",
			"tXMRBTC": "0.005",
			"tDSHBTC": "0.0006",
		}),
	}
	svc := newService(source,
		map[string]string{"BTC": "1", "XRP": "15000", "XMR": "50", "DSH": "30"},
		[]string{"USD", "BTC", "XRP", "XMR", "DSH"})

	result := svc.CalculatePortfolio(context.Background())
	require.Len(t, result, 5)
	for _, target := range []string{"USD", "BTC", "XRP", "XMR", "DSH"} {
		assert.Contains(t, result, target)
	}
	assert.True(t, result["USD"].IsPositive())
}

func TestCalculatePortfolioSkipsUnroutableBalance(t *testing.T) {
	source := &fakeSource{
		ok: true,
		snapshot: snapshotOf(map[string]string{
			"tBTCUSD": "60000",
		}),
	}
	svc := newService(source, map[string]string{"BTC": "1", "OBSCURE": "999"}, []string{"USD"})

	result := svc.CalculatePortfolio(context.Background())
	// the unroutable balance contributes nothing instead of failing the pass
	assert.True(t, result["USD"].Equal(decimal.RequireFromString("60000.00")),
		"got %s", result["USD"])
}

func TestCalculatePortfolioEmptyBalances(t *testing.T) {
	source := &fakeSource{
		ok:       true,
		snapshot: snapshotOf(map[string]string{"tBTCUSD": "60000"}),
	}
	svc := newService(source, nil, []string{"USD", "BTC"})

	result := svc.CalculatePortfolio(context.Background())
	require.Len(t, result, 2)
	assert.True(t, result["USD"].IsZero())
	assert.True(t, result["BTC"].IsZero())
}

func TestCalculatePortfolioSnapshotUnavailable(t *testing.T) {
	svc := newService(&fakeSource{ok: false}, map[string]string{"BTC": "1"}, []string{"USD"})

	result := svc.CalculatePortfolio(context.Background())
	assert.Empty(t, result)
}

func TestUniverse(t *testing.T) {
	source := &fakeSource{
		ok: true,
		snapshot: snapshotOf(map[string]string{
			"tBTCUSD": "60000",
			"tXRPUSD": "0.5",
		}),
	}
	svc := newService(source, map[string]string{"BTC": "1"}, []string{"USD"})

	assert.Nil(t, svc.Universe())

	svc.CalculatePortfolio(context.Background())
	assert.ElementsMatch(t, []string{"tBTCUSD", "tXRPUSD"}, svc.Universe())
}
