// Package scheduler drives the periodic reminder dispatch tick.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/remindbot/remindbot/internal/redis"
)

// Dispatcher is the scheduled entry point of the dispatch engine.
type Dispatcher interface {
	ProcessScheduled(ctx context.Context, now time.Time) (int, error)
}

// Config tunes the scheduler.
type Config struct {
	Interval time.Duration // defaults to 1 hour
}

// Scheduler invokes the dispatcher on a fixed interval. Each tick passes the
// wall clock as the reference time; ticks are panic-safe so one bad run
// never kills the loop.
type Scheduler struct {
	dispatcher Dispatcher
	lock       *redis.RunLock // nil when Redis is unavailable
	config     Config
	logger     *zap.Logger
}

const lockName = "dispatch"

// New creates a scheduler. lock may be nil; the tick then runs unguarded.
func New(dispatcher Dispatcher, lock *redis.RunLock, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Hour
	}

	return &Scheduler{
		dispatcher: dispatcher,
		lock:       lock,
		config:     cfg,
		logger:     logger,
	}
}

// Start runs the tick loop until the context is cancelled. The first tick
// waits a full interval; admins can trigger an immediate run through the API.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.config.Interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dispatch tick panicked", zap.Any("panic", r))
		}
	}()

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, lockName)
		if err != nil {
			// Lock is best-effort: the ledger's per-day check keeps an
			// unguarded run idempotent.
			s.logger.Warn("run lock unavailable, proceeding", zap.Error(err))
		} else if !acquired {
			s.logger.Info("dispatch already running, skipping tick")
			return
		} else {
			defer func() {
				if err := s.lock.Release(ctx, lockName); err != nil {
					s.logger.Warn("failed to release run lock", zap.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	sent, err := s.dispatcher.ProcessScheduled(ctx, time.Now())
	if err != nil {
		s.logger.Error("scheduled dispatch failed", zap.Error(err))
		return
	}

	s.logger.Info("dispatch tick completed",
		zap.Int("sent", sent),
		zap.Duration("duration", time.Since(start)),
	)
}
