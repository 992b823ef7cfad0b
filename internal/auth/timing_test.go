package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_WaitFrom_PadsToBase(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 100 * time.Millisecond})
	startTime := time.Now()

	time.Sleep(50 * time.Millisecond)
	timing.WaitFrom(context.Background(), startTime)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond)
}

func TestTimingDelay_WaitFrom_WithJitter(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   50 * time.Millisecond,
		RandomDelay: 50 * time.Millisecond,
	})
	startTime := time.Now()

	timing.WaitFrom(context.Background(), startTime)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond)
}

func TestTimingDelay_WaitFrom_NoWaitIfAlreadyExceeded(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 20 * time.Millisecond})
	startTime := time.Now()

	time.Sleep(40 * time.Millisecond)
	before := time.Now()
	timing.WaitFrom(context.Background(), startTime)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestTimingDelay_WaitFrom_StopsOnContextCancel(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelay: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	startTime := time.Now()
	timing.WaitFrom(ctx, startTime)

	assert.Less(t, time.Since(startTime), time.Second)
}

func TestTimingDelay_DisabledAndNil(t *testing.T) {
	startTime := time.Now()

	auth.NewTimingDelay(auth.TimingConfig{}).WaitFrom(context.Background(), startTime)

	var nilDelay *auth.TimingDelay
	nilDelay.WaitFrom(context.Background(), startTime)

	assert.Less(t, time.Since(startTime), 10*time.Millisecond)
}
