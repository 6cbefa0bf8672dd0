package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/leafcheck/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_PadFailure_WaitsForBase(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50})
	startTime := time.Now()

	timing.PadFailure(context.Background(), startTime)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond) // Reasonable upper bound
}

func TestTimingDelay_PadFailure_CountsElapsedWork(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100})
	startTime := time.Now()

	// Simulate a bcrypt comparison already done
	time.Sleep(50 * time.Millisecond)

	timing.PadFailure(context.Background(), startTime)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 140*time.Millisecond)
}

func TestTimingDelay_PadFailure_NoWaitIfAlreadyExceeded(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 20})
	startTime := time.Now().Add(-100 * time.Millisecond)

	before := time.Now()
	timing.PadFailure(context.Background(), startTime)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestTimingDelay_PadFailure_StopsOnCancel(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 5000})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	startTime := time.Now()
	timing.PadFailure(ctx, startTime)

	assert.Less(t, time.Since(startTime), time.Second)
}

func TestTimingDelay_NilIsNoop(t *testing.T) {
	var timing *auth.TimingDelay

	startTime := time.Now()
	timing.PadFailure(context.Background(), startTime)

	assert.Less(t, time.Since(startTime), 10*time.Millisecond)
}
