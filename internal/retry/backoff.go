package retry

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes the delay before retry number attempt (1-based). The
// schedule is exponential and capped at max, with up to half the step
// randomized as jitter so synchronized failures do not retry in a burst.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max || wait <= 0 {
		wait = max
	}
	half := wait / 2
	if half <= 0 {
		// Sub-2ns steps happen only with a degenerate max; rand.Int63n
		// panics on a non-positive bound.
		return wait
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}
