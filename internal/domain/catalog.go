package domain

// Catalog is the set of known trading symbols, extracted from a ticker
// snapshot. The valuation engine consults it to decide which candidate
// pairs actually trade on the exchange.
//
// Membership is an exact set test. A candidate pair is accepted only when
// the constructed symbol itself is listed, never when it merely appears
// inside a longer symbol.
type Catalog struct {
	symbols map[string]struct{}
}

// NewCatalog builds a catalog from a list of trading symbols.
func NewCatalog(symbols []string) *Catalog {
	c := &Catalog{symbols: make(map[string]struct{}, len(symbols))}
	for _, s := range symbols {
		c.symbols[s] = struct{}{}
	}
	return c
}

// CatalogFromSnapshot builds a catalog covering the snapshot's universe.
func CatalogFromSnapshot(snap TickerSnapshot) *Catalog {
	return NewCatalog(snap.Symbols())
}

// Has reports whether the exact symbol is listed.
func (c *Catalog) Has(symbol string) bool {
	_, ok := c.symbols[symbol]
	return ok
}

// Len returns the number of listed symbols.
func (c *Catalog) Len() int {
	return len(c.symbols)
}

// Symbols returns the listed symbols in unspecified order.
func (c *Catalog) Symbols() []string {
	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	return out
}

// ValidPair returns the listed symbol quoting base against quote. It tries
// t<base><quote> first and the reversed t<quote><base> second, so the
// returned pair may be inverted relative to the requested direction;
// callers consume its last price as-is.
func (c *Catalog) ValidPair(base, quote string) (string, bool) {
	pair := TradingPrefix + base + quote
	if c.Has(pair) {
		return pair, true
	}
	pair = TradingPrefix + quote + base
	if c.Has(pair) {
		return pair, true
	}
	return "", false
}
