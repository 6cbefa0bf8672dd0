package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds the failure delay window
type TimingConfig struct {
	BaseDelayMs   int // Minimum time a failed attempt takes
	RandomDelayMs int // Upper bound of extra jitter on top of the base
}

// TimingDelay pads failed credential checks to a common duration so that
// "no such user" and "wrong password" cannot be told apart by latency.
type TimingDelay struct {
	base   time.Duration
	jitter time.Duration
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		base:   time.Duration(config.BaseDelayMs) * time.Millisecond,
		jitter: time.Duration(config.RandomDelayMs) * time.Millisecond,
	}
}

// cryptoRandDuration returns a uniform duration in [0, max).
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}

	return time.Duration(binary.BigEndian.Uint64(b[:]) % uint64(max))
}

// PadFailure blocks until at least base+jitter has passed since start, or ctx
// is done. Work already spent since start counts toward the target.
func (td *TimingDelay) PadFailure(ctx context.Context, start time.Time) {
	if td == nil {
		return
	}

	target := td.base + cryptoRandDuration(td.jitter)
	remaining := target - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
