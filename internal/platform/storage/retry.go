package storage

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig drives the exponential backoff applied to transient
// connection failures.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
}

// DefaultRetryConfig returns the default policy: at most 3 attempts, with
// waits of about 2s and then 4s (jittered by the backoff library) between them.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialInterval: 2 * time.Second, Multiplier: 2.0}
}

func (c RetryConfig) policy() backoff.BackOff {
	if c.MaxAttempts <= 0 {
		c = DefaultRetryConfig()
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.InitialInterval
	eb.Multiplier = c.Multiplier
	eb.MaxElapsedTime = 0
	return backoff.WithMaxRetries(eb, uint64(c.MaxAttempts-1))
}
