package redis

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRunLock_AcquireAndRelease(t *testing.T) {
	lock := NewRunLock(setupTestClient(t), zap.NewNop(), time.Minute)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "dispatch")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !acquired {
		t.Fatal("first acquire should succeed")
	}

	// Second acquire while held should fail
	acquired, err = lock.Acquire(ctx, "dispatch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Fatal("second acquire should fail while lock is held")
	}

	if err := lock.Release(ctx, "dispatch"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	// After release the lock is free again
	acquired, err = lock.Acquire(ctx, "dispatch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("acquire after release should succeed")
	}
}

func TestRunLock_SeparateNames(t *testing.T) {
	lock := NewRunLock(setupTestClient(t), zap.NewNop(), time.Minute)
	ctx := context.Background()

	if ok, _ := lock.Acquire(ctx, "dispatch"); !ok {
		t.Fatal("dispatch lock should be free")
	}
	if ok, _ := lock.Acquire(ctx, "cleanup"); !ok {
		t.Fatal("cleanup lock is independent of dispatch")
	}
}
