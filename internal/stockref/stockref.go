// Package stockref holds the in-process reference-data catalog of tradable
// tickers, seeded at startup, used by admission's UNKNOWN_TICKER check and
// by the price oracle's default-price table.
package stockref

import "sync"

// Status is the listing status of a Stock.
type Status string

const (
	Listed   Status = "LISTED"
	Delisted Status = "DELISTED"
)

// Stock is a reference-data row: ticker, name, sector, listing status.
type Stock struct {
	Ticker string
	Name   string
	Sector string
	Status Status
}

// DefaultSystemPrice is DefaultConfig's fallback price, returned by
// Catalog.DefaultPrice for a ticker with no seeded default; configurable
// via trading.default_price_minor_units.
const DefaultSystemPrice int64 = 50_000

var seed = []struct {
	Stock
	defaultPrice int64
}{
	{Stock{"005930", "Samsung Electronics", "Electronics", Listed}, 70_000},
	{Stock{"000660", "SK Hynix", "Semiconductors", Listed}, 130_000},
	{Stock{"035420", "NAVER", "Internet", Listed}, 180_000},
	{Stock{"005380", "Hyundai Motor", "Automotive", Listed}, 210_000},
	{Stock{"051910", "LG Chem", "Chemicals", Listed}, 400_000},
	{Stock{"035720", "Kakao", "Internet", Listed}, 45_000},
	{Stock{"068270", "Celltrion", "Biotech", Listed}, 175_000},
	{Stock{"105560", "KB Financial Group", "Finance", Listed}, 60_000},
}

// Config carries the catalog's caller-visible constants from spec.md §9.
type Config struct {
	DefaultSystemPrice int64
}

// DefaultConfig matches spec.md's literal value.
func DefaultConfig() Config {
	return Config{DefaultSystemPrice: DefaultSystemPrice}
}

// Catalog is a read-only, in-memory stock reference table. Safe for
// concurrent reads from many goroutines.
type Catalog struct {
	mu     sync.RWMutex
	stocks map[string]Stock
	prices map[string]int64
	cfg    Config
}

// New builds a Catalog seeded from the embedded table.
func New(cfg Config) *Catalog {
	c := &Catalog{
		stocks: make(map[string]Stock, len(seed)),
		prices: make(map[string]int64, len(seed)),
		cfg:    cfg,
	}
	for _, s := range seed {
		c.stocks[s.Ticker] = s.Stock
		c.prices[s.Ticker] = s.defaultPrice
	}
	return c
}

// Lookup returns the Stock for ticker, or false if unknown.
func (c *Catalog) Lookup(ticker string) (Stock, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stocks[ticker]
	return s, ok
}

// IsTradable reports whether ticker is known and listed.
func (c *Catalog) IsTradable(ticker string) bool {
	s, ok := c.Lookup(ticker)
	return ok && s.Status == Listed
}

// DefaultPrice returns the seeded default price for ticker, falling back to
// the Config's DefaultSystemPrice for unknown tickers.
func (c *Catalog) DefaultPrice(ticker string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.prices[ticker]; ok {
		return p
	}
	return c.cfg.DefaultSystemPrice
}

// Tickers returns every seeded ticker symbol.
func (c *Catalog) Tickers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.stocks))
	for t := range c.stocks {
		out = append(out, t)
	}
	return out
}
