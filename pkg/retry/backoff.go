package retry

import (
	"math"
	"math/rand"
	"time"
)

// randFloat is shared by concurrent RPCs, so it must be goroutine safe.
//
//nolint:gosec
var randFloat = rand.Float64

// BackoffStrategy decides how long to wait before a given retry attempt.
type BackoffStrategy interface {
	// Backoff returns the wait before attempt, counting from 1.
	Backoff(attempt int) time.Duration
}

// BackoffFunc adapts an ordinary function to a BackoffStrategy.
type BackoffFunc func(attempt int) time.Duration

func (s BackoffFunc) Backoff(attempt int) time.Duration { return s(attempt) }

type ConstBackoff struct {
	Delay time.Duration
}

func (c ConstBackoff) Backoff(int) time.Duration { return c.Delay }

// ExponentialBackoff grows the delay by Multiplier after every attempt and
// caps it at MaxDelay before jitter is added.
type ExponentialBackoff struct {
	Multiplier   float64
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Jitter is the fraction of the delay added at random.
	Jitter float64
}

func (b *ExponentialBackoff) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	scaled := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	duration := time.Duration(scaled)
	if scaled > math.MaxInt64 || duration < 0 {
		duration = time.Duration(math.MaxInt64)
	}

	if b.MaxDelay > 0 && duration > b.MaxDelay {
		duration = b.MaxDelay
	}

	if b.Jitter > 0 {
		duration += time.Duration(randFloat() * b.Jitter * float64(duration))
	}

	return duration
}

// DefaultExponentialBackoff suits calls to the catalog API: a handful of
// quick retries that give up well within a Pulumi operation timeout.
var DefaultExponentialBackoff = &ExponentialBackoff{
	Multiplier:   2,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Jitter:       0.2,
}
