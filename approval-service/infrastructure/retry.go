package infrastructure

import (
	"context"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/pkg/errors"
	"github.com/tripline/booking-system/approval-service/domain"
)

const (
	storeAttempts  = 3
	storeBaseDelay = 100 * time.Millisecond
)

// ThrottleError marks a store failure as throttle-class so the retry helper
// knows it is worth another attempt.
type ThrottleError struct {
	Err error
}

func (e *ThrottleError) Error() string {
	return "store throttled: " + e.Err.Error()
}

func (e *ThrottleError) Unwrap() error {
	return e.Err
}

// IsThrottle reports whether an error is throttle/server-busy class
func IsThrottle(err error) bool {
	var throttle *ThrottleError
	return errors.As(err, &throttle)
}

// withStoreRetry runs a store operation with up to three attempts and a
// doubling backoff starting at 100ms. Only throttle-class errors are retried;
// everything else propagates immediately. Exhausting the budget on throttles
// surfaces ErrStoreUnavailable.
func withStoreRetry(ctx context.Context, op func() error) error {
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(storeAttempts),
		retry.Delay(storeBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsThrottle),
		retry.LastErrorOnly(true),
	)

	err := r.Do(op)
	if IsThrottle(err) {
		return errors.Wrapf(domain.ErrStoreUnavailable, "%v", err)
	}

	return err
}
