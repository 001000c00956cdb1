package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RunLock is a best-effort SETNX mutex around a dispatch run so the hourly
// tick and an admin-triggered run don't interleave. It is not the
// correctness mechanism - the ledger's per-day check is - so callers proceed
// without the lock when Redis is unavailable.
type RunLock struct {
	client *Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRunLock creates a run lock. The TTL bounds how long a crashed run can
// hold the lock.
func NewRunLock(client *Client, logger *zap.Logger, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &RunLock{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func (l *RunLock) key(name string) string {
	return fmt.Sprintf("runlock:%s", name)
}

// Acquire attempts to take the named lock. Returns false when another run
// holds it.
func (l *RunLock) Acquire(ctx context.Context, name string) (bool, error) {
	ok, err := l.client.rdb.SetNX(ctx, l.key(name), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}

	if !ok {
		l.logger.Debug("run lock held elsewhere", zap.String("name", name))
	}

	return ok, nil
}

// Release frees the named lock.
func (l *RunLock) Release(ctx context.Context, name string) error {
	if err := l.client.rdb.Del(ctx, l.key(name)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
