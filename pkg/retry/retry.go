// Package retry runs operations again when they fail with a transient error.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Config struct {
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts" default:"4"`
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay" default:"200ms"`
	MaxDelay     time.Duration `yaml:"max_delay" mapstructure:"max_delay" default:"5s"`
	Multiplier   float64       `yaml:"multiplier" mapstructure:"multiplier" default:"2"`
	Jitter       float64       `yaml:"jitter" mapstructure:"jitter" default:"0.2"`
}

func (c Config) Policy() Policy {
	return Policy{
		MaxAttempts: c.MaxAttempts,
		Backoff: &ExponentialBackoff{
			Multiplier:   c.Multiplier,
			InitialDelay: c.InitialDelay,
			MaxDelay:     c.MaxDelay,
			Jitter:       c.Jitter,
		},
	}
}

// Policy bounds how often and how far apart attempts are made.
type Policy struct {
	// MaxAttempts includes the first call. Values below 1 mean a single call.
	MaxAttempts int
	Backoff     BackoffStrategy
	// OnRetry, when set, is called before waiting for the next attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// IsRetryable reports whether err, or an error it wraps, is a
// RetryableError or reports itself as temporary.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}
	var tmp interface{ Temporary() bool }
	return errors.As(err, &tmp) && tmp.Temporary()
}

// Do calls fn until it succeeds, returns a non retryable error, the policy
// runs out of attempts or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = DefaultExponentialBackoff
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil || !IsRetryable(err) || attempt >= maxAttempts {
			return err
		}

		wait := backoff.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: giving up after attempt %d: %v", ctx.Err(), attempt, err)
		case <-timer.C:
		}
	}
}
