package workflow

import (
	"math"
	"time"

	"taskq/internal/config"
)

// BackoffPolicy computes the delay before the retryCount-th retry. Policies
// must be deterministic and non-decreasing in retryCount.
type BackoffPolicy interface {
	Delay(retryCount int) time.Duration
}

// ExponentialBackoff waits Base, then Base*Multiplier, Base*Multiplier^2, ...
// capped at Max.
type ExponentialBackoff struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff starts at 30 seconds and doubles up to one hour.
func DefaultBackoff() ExponentialBackoff {
	return ExponentialBackoff{Base: 30 * time.Second, Max: time.Hour, Multiplier: 2}
}

// BackoffFromConfig builds the exponential policy described by the queue settings.
func BackoffFromConfig(cfg *config.Config) ExponentialBackoff {
	if cfg == nil {
		return DefaultBackoff()
	}
	return ExponentialBackoff{
		Base:       time.Duration(cfg.Queue.BackoffBaseSeconds) * time.Second,
		Max:        time.Duration(cfg.Queue.BackoffMaxSeconds) * time.Second,
		Multiplier: cfg.Queue.BackoffMultiplier,
	}
}

func (b ExponentialBackoff) Delay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(b.Base) * math.Pow(multiplier, float64(retryCount-1))
	if b.Max > 0 && delay > float64(b.Max) {
		return b.Max
	}
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// FixedBackoff waits the same duration before every retry.
type FixedBackoff time.Duration

func (f FixedBackoff) Delay(int) time.Duration {
	return time.Duration(f)
}
