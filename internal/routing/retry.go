package routing

import (
	"math"
	"time"
)

// Retry hint tables keyed by category. Unlisted categories fall back to the
// defaults of 5 seconds and 2 retries.
var (
	retryDelaySeconds = map[ErrorCategory]int{
		CategoryRateLimiting: 60,
		CategoryNetwork:      5,
		CategoryVPNSpecific:  10,
		CategoryService:      30,
	}
	retryMaxAttempts = map[ErrorCategory]int{
		CategoryRateLimiting: 3,
		CategoryNetwork:      3,
		CategoryVPNSpecific:  2,
		CategoryService:      3,
	}
)

// RetryDelay returns the recommended client delay before retrying an error
// of the given category, in seconds.
func RetryDelay(category ErrorCategory) int {
	if d, ok := retryDelaySeconds[category]; ok {
		return d
	}
	return 5
}

// MaxRetries returns the recommended maximum retry count for the category.
func MaxRetries(category ErrorCategory) int {
	if n, ok := retryMaxAttempts[category]; ok {
		return n
	}
	return 2
}

// Backoff computes the exponential backoff delay for a zero-based attempt
// number, capped at max.
func Backoff(base time.Duration, attempt int, max time.Duration) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > max {
		return max
	}
	return d
}
