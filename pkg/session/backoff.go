package session

import (
	"math/rand"
	"sync"
	"time"
)

// Reconnection backoff constants.
const (
	// InitialBackoff is the delay before the first retry.
	InitialBackoff = 1 * time.Second

	// MaxBackoff caps the delay between retries.
	MaxBackoff = 60 * time.Second

	// BackoffMultiplier is the growth factor per attempt.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of the delay.
	JitterFactor = 0.25

	// StaleAuthThreshold is how long a hub may stay unreachable before
	// cached credentials are treated as suspect and dropped. Hubs that
	// go away for minutes often come back with rotated tokens or on a
	// different relay.
	StaleAuthThreshold = 150 * time.Second
)

// Backoff calculates exponential reconnection delays with jitter and
// tracks how long the connection has been down.
type Backoff struct {
	mu sync.Mutex

	current  time.Duration
	attempts int

	// downSince is when the current outage began; zero while up.
	downSince time.Time

	rng *rand.Rand
	now func() time.Time
}

// NewBackoff creates a backoff calculator with the default constants.
func NewBackoff() *Backoff {
	return &Backoff{
		current: InitialBackoff,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
// The first call of an outage marks its start.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.downSince.IsZero() {
		b.downSince = b.now()
	}

	delay := b.current
	if JitterFactor > 0 {
		delay += time.Duration(float64(delay) * JitterFactor * b.rng.Float64())
	}

	b.attempts++
	next := time.Duration(float64(b.current) * BackoffMultiplier)
	if next > MaxBackoff {
		next = MaxBackoff
	}
	b.current = next

	return delay
}

// Attempts returns the retry count since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// AuthStale reports whether the outage has lasted long enough that
// cached credentials should be invalidated before the next attempt.
func (b *Backoff) AuthStale() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.downSince.IsZero() && b.now().Sub(b.downSince) > StaleAuthThreshold
}

// Reset clears the backoff after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = InitialBackoff
	b.attempts = 0
	b.downSince = time.Time{}
}
