package cache

import (
	"context"
	"time"

	"github.com/wyfcoding/simtrading/internal/platform/logging"
)

// CleanupJob periodically sweeps close:{ticker} keys. Redis's own
// expiry retires them after closeTTL in the common case; this only
// catches entries that somehow carry no TTL (a key written before this
// job existed, or restored from a snapshot) so they don't linger
// forever, re-asserting the 7-day expiry rather than deleting outright.
type CleanupJob struct {
	cache    *RedisCache
	interval time.Duration
}

// NewCleanupJob builds a CleanupJob sweeping every interval.
func NewCleanupJob(c *RedisCache, interval time.Duration) *CleanupJob {
	return &CleanupJob{cache: c, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (j *CleanupJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	logging.Info(ctx, "cache cleanup job started", "interval", j.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *CleanupJob) sweep(ctx context.Context) {
	keys, err := j.cache.c.Keys(ctx, closeKeyPrefix+"*")
	if err != nil {
		logging.Error(ctx, "close key sweep failed", "error", err)
		return
	}

	var reasserted int
	for _, key := range keys {
		ttl, err := j.cache.c.TTL(ctx, key)
		if err != nil {
			logging.Error(ctx, "close key ttl check failed", "key", key, "error", err)
			continue
		}
		// A negative TTL from go-redis means either "no expiry" (-1) or
		// "key gone" (-2); either way there is nothing destructive to do
		// by re-asserting one, and a key that vanished mid-scan is a no-op.
		if ttl < 0 {
			if err := j.cache.c.Expire(ctx, key, closeTTL); err != nil {
				logging.Error(ctx, "close key expire reassert failed", "key", key, "error", err)
				continue
			}
			reasserted++
		}
	}

	if reasserted > 0 {
		logging.Info(ctx, "cache cleanup swept close keys", "scanned", len(keys), "reasserted", reasserted)
	}
}
