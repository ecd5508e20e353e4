package cache

import (
	"context"
	"sync"
)

// MemoryCache is a plain map-backed Cache for tests that don't need a live
// Redis; it ignores TTLs entirely (tests control freshness via FakeClock
// timestamps on the snapshot itself, not via eviction).
type MemoryCache struct {
	mu     sync.RWMutex
	prices map[string]PriceSnapshot
	books  map[string]OrderBookSnapshot
	closes map[string]int64
}

// NewMemoryCache builds an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		prices: make(map[string]PriceSnapshot),
		books:  make(map[string]OrderBookSnapshot),
		closes: make(map[string]int64),
	}
}

func (m *MemoryCache) PutPrice(_ context.Context, ticker string, snap PriceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[ticker] = snap
	return nil
}

func (m *MemoryCache) GetPrice(_ context.Context, ticker string) (PriceSnapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.prices[ticker]
	return snap, ok, nil
}

func (m *MemoryCache) PutBook(_ context.Context, ticker string, book OrderBookSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[ticker] = book
	return nil
}

func (m *MemoryCache) GetBook(_ context.Context, ticker string) (OrderBookSnapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	book, ok := m.books[ticker]
	return book, ok, nil
}

func (m *MemoryCache) PutClose(_ context.Context, ticker string, price int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes[ticker] = price
	return nil
}

func (m *MemoryCache) GetClose(_ context.Context, ticker string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	price, ok := m.closes[ticker]
	return price, ok, nil
}

func (m *MemoryCache) ListActiveTickers(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tickers := make([]string, 0, len(m.prices))
	for t := range m.prices {
		tickers = append(tickers, t)
	}
	return tickers, nil
}

var _ Cache = (*MemoryCache)(nil)
var _ Cache = (*RedisCache)(nil)
