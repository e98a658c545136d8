package readerlink

import (
	"math"
	"time"
)

// DefaultReconnectDelay is the fixed delay between a link failure and the next dial attempt.
const DefaultReconnectDelay = 100 * time.Millisecond

// RetryPolicy decides how long the link waits before the next dial attempt.
//
// attempt is the number of consecutive failures since the last successful connect, starting at 1.
type RetryPolicy interface {
	Delay(attempt int) time.Duration
}

// FixedDelay retries after the same delay on every attempt.
type FixedDelay time.Duration

// Delay implements RetryPolicy.
func (d FixedDelay) Delay(int) time.Duration {
	return time.Duration(d)
}

// ExponentialBackoff multiplies the delay by Factor on every consecutive failure, capped at Max.
type ExponentialBackoff struct {
	// Initial is the delay of the first attempt.
	Initial time.Duration
	// Max caps the delay. Zero means no cap.
	Max time.Duration
	// Factor is the growth factor. Values below 1 are treated as 1.
	Factor float64
}

// Delay implements RetryPolicy.
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	factor := b.Factor
	if factor < 1 {
		factor = 1
	}

	delay := float64(b.Initial) * math.Pow(factor, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		return b.Max
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(delay)
}
