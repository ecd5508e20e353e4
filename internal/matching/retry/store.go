package retry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wyfcoding/simtrading/internal/platform/cachex"
)

const keyPrefix = "retry:count:"

type redisRecord struct {
	OrderID        string    `json:"order_id"`
	RetryCount     int       `json:"retry_count"`
	NextEligibleAt time.Time `json:"next_eligible_at"`
}

// RedisStore is the production Store, backed by cachex with a 24h TTL per
// spec.md's RetryRecord requirement.
type RedisStore struct {
	c *cachex.Cache
}

// NewRedisStore wraps an already-connected cachex.Cache.
func NewRedisStore(c *cachex.Cache) *RedisStore { return &RedisStore{c: c} }

func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	key := fmt.Sprintf("%s%s", keyPrefix, rec.OrderID)
	return s.c.SetJSON(ctx, key, redisRecord{
		OrderID:        rec.OrderID,
		RetryCount:     rec.RetryCount,
		NextEligibleAt: rec.NextEligibleAt,
	}, RecordTTL)
}

func (s *RedisStore) Get(ctx context.Context, orderID string) (Record, bool, error) {
	var rr redisRecord
	ok, err := s.c.GetJSON(ctx, keyPrefix+orderID, &rr)
	if err != nil || !ok {
		return Record{}, ok, err
	}
	return Record{OrderID: rr.OrderID, RetryCount: rr.RetryCount, NextEligibleAt: rr.NextEligibleAt}, true, nil
}

// MemoryStore is a plain map-backed Store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.OrderID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, orderID string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[orderID]
	return rec, ok, nil
}

var _ Store = (*RedisStore)(nil)
var _ Store = (*MemoryStore)(nil)
