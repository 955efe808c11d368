package actions

import (
	"errors"
	"time"

	"github.com/ivankudzin/modactions/internal/domain/model"
)

// BackoffDelay returns the wait before retry attemptNumber, where 1 is the
// first retry. The curve is base*2^(attemptNumber-1) capped at max; there is
// no delay before the very first attempt.
func BackoffDelay(attemptNumber int, base, max time.Duration) time.Duration {
	if attemptNumber < 1 || base <= 0 {
		return 0
	}
	if max <= 0 {
		max = base
	}

	delay := base
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// Retryable reports whether a gateway failure is worth another attempt.
// Failures not classified by the gateway are treated as transient.
func Retryable(err error) bool {
	var perr *model.PlatformError
	if errors.As(err, &perr) {
		return perr.Transient
	}
	return true
}
