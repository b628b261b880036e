package backoff

import (
	"math/rand"
	"time"
)

// Strategy defines the interface for backoff calculation algorithms.
type Strategy interface {
	// Calculate returns the backoff duration for the given attempt number
	// and parameters. Attempt is zero-based: attempt 0 is the delay before
	// the first retry.
	Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration
}

// ExponentialStrategy implements deterministic exponential backoff without
// jitter: initialBackoff * multiplier^attempt, capped at maxBackoff. The
// jitter parameter is ignored.
type ExponentialStrategy struct{}

// Calculate implements the Strategy interface.
func (s ExponentialStrategy) Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, _ float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	backoff := time.Duration(float64(initialBackoff) * Pow(multiplier, attempt))
	if backoff < 0 || (maxBackoff > 0 && backoff > maxBackoff) {
		backoff = maxBackoff
	}
	return backoff
}

// ExponentialJitterStrategy implements exponential backoff with uniform
// jitter.
type ExponentialJitterStrategy struct{}

// Calculate implements the Strategy interface.
func (s ExponentialJitterStrategy) Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration {
	backoff := ExponentialStrategy{}.Calculate(attempt, initialBackoff, maxBackoff, multiplier, 0)

	jitter = clampJitter(jitter)
	if jitter > 0 {
		jitterAmount := time.Duration(float64(backoff) * jitter * rand.Float64())
		if maxBackoff > 0 && backoff+jitterAmount > maxBackoff {
			backoff = maxBackoff
		} else {
			backoff += jitterAmount
		}
	}
	return backoff
}

// DecorrelatedJitterStrategy implements decorrelated jitter as per the AWS
// architecture blog: random_between(base, min(cap, base * 3^attempt)).
type DecorrelatedJitterStrategy struct{}

// Calculate implements the Strategy interface.
func (s DecorrelatedJitterStrategy) Calculate(attempt int, initialBackoff, maxBackoff time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return initialBackoff
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(initialBackoff)
	upper := base * Pow(3.0, attempt)

	maxBackoffFloat := float64(maxBackoff)
	if maxBackoff > 0 && (upper > maxBackoffFloat || upper < 0) {
		upper = maxBackoffFloat
	}
	if upper < base {
		upper = base
	}

	delay := base + rand.Float64()*(upper-base)
	result := time.Duration(delay)
	if result < 0 || (maxBackoff > 0 && result > maxBackoff) {
		result = maxBackoff
	}
	return result
}

// Pow computes base^exponent for non-negative integer exponents without
// pulling in math.Pow.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}
