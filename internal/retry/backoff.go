package retry

import (
	"math"
	"time"
)

// Backoff strategies.
const (
	BackoffNone        = "none"
	BackoffFixed       = "fixed"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// CalculateBackoff returns the delay before retry number attempt (1-based).
func CalculateBackoff(strategy string, attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var delay time.Duration

	switch strategy {
	case BackoffNone:
		delay = 0
	case BackoffFixed:
		delay = base
	case BackoffLinear:
		delay = base * time.Duration(attempt)
	default:
		delay = base * time.Duration(math.Pow(2, float64(attempt-1)))
	}

	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
