package clients

import (
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
)

// DefaultCallTimeout bounds a single outbound notification call.
const DefaultCallTimeout = 10 * time.Second

// NewTimeoutExecutor returns an executor that only enforces a time limit on
// each call. No retries: a failed call is reported to the caller as-is.
func NewTimeoutExecutor[R any](limit time.Duration) failsafe.Executor[R] {
	if limit <= 0 {
		limit = DefaultCallTimeout
	}
	return failsafe.With[R](timeout.New[R](limit))
}

// IsTimeout reports whether err came from a timeout policy.
func IsTimeout(err error) bool {
	return errors.Is(err, timeout.ErrExceeded)
}
