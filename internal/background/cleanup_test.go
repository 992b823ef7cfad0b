package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	"github.com/stretchr/testify/assert"
)

type fakeLimiter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeLimiter) ResetLimit(context.Context, string) error { return nil }

func (f *fakeLimiter) Cleanup(context.Context) (int, error) {
	f.calls.Add(1)
	return 2, f.err
}

type fakeLockout struct {
	mu   sync.Mutex
	days []int
}

func (f *fakeLockout) CheckLockout(context.Context, string) (*models.LockoutStatus, error) {
	return &models.LockoutStatus{}, nil
}

func (f *fakeLockout) ResetAttempts(context.Context, string) error { return nil }

func (f *fakeLockout) Cleanup(_ context.Context, days int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, days)
	return 5, nil
}

func (f *fakeLockout) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.days)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanupManager_RunsImmediatelyAndOnTick(t *testing.T) {
	limiter := &fakeLimiter{}
	lockout := &fakeLockout{}
	cm := NewCleanupManager(limiter, lockout, 30, discard(), 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return lockout.count() >= 2 }, time.Second, 5*time.Millisecond)
	cm.Stop()
	cm.Stop()
	<-done

	assert.GreaterOrEqual(t, int(limiter.calls.Load()), 2)
	lockout.mu.Lock()
	assert.Equal(t, 30, lockout.days[0])
	lockout.mu.Unlock()
}

func TestCleanupManager_LimiterFailureStillPrunesAttempts(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	lockout := &fakeLockout{}
	cm := NewCleanupManager(limiter, lockout, 90, discard(), time.Hour)

	cm.runCleanup(context.Background())

	assert.Equal(t, 1, lockout.count())
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	cm := NewCleanupManager(&fakeLimiter{}, &fakeLockout{}, 90, discard(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}
