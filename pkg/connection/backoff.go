package connection

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Reconnect delay defaults. A stream that keeps failing waits 500ms, then
// 1s, 2s and so on up to 30s between attempts.
const (
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
	DefaultGrowth       = 2.0

	// JitterFactor is the default upper bound of the random extra delay,
	// relative to the base delay.
	JitterFactor = 0.25
)

// BackoffConfig holds the reconnect delay parameters. Zero fields take the
// defaults; a negative Jitter means none.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = DefaultInitialDelay
	}
	if c.Max <= 0 {
		c.Max = DefaultMaxDelay
	}
	c.Max = max(c.Max, c.Initial)
	if c.Multiplier <= 1 {
		c.Multiplier = DefaultGrowth
	}
	c.Jitter = max(c.Jitter, 0)
	return c
}

// Backoff hands out growing reconnect delays. Methods may be called from
// several goroutines.
type Backoff struct {
	cfg BackoffConfig

	mu    sync.Mutex
	base  time.Duration
	tries int
	rng   *rand.Rand
}

// NewBackoff returns a Backoff using the defaults, jitter included.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{Jitter: JitterFactor})
}

// NewBackoffWithConfig returns a Backoff for cfg.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	cfg = cfg.withDefaults()
	return &Backoff{
		cfg:  cfg,
		base: cfg.Initial,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before the upcoming attempt and grows the base
// delay for the one after it.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.base
	if b.cfg.Jitter > 0 {
		d += time.Duration(float64(d) * b.cfg.Jitter * b.rng.Float64())
	}

	b.tries++
	b.base = min(time.Duration(float64(b.base)*b.cfg.Multiplier), b.cfg.Max)
	return d
}

// Wait blocks for Next() or until ctx ends, whichever comes first.
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset starts over from the initial delay, typically once a stream is up.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.base = b.cfg.Initial
	b.tries = 0
	b.mu.Unlock()
}

// Attempts counts Next calls since construction or the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tries
}

// Current is the base delay Next will start from.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.base
}
