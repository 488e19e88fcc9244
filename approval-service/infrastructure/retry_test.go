package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/tripline/booking-system/approval-service/domain"
)

func TestWithStoreRetry_ThrottleTwiceThenSucceed(t *testing.T) {
	attempts := 0
	var attemptTimes []time.Time

	err := withStoreRetry(context.Background(), func() error {
		attempts++
		attemptTimes = append(attemptTimes, time.Now())
		if attempts < 3 {
			return &ThrottleError{Err: errors.New("server busy")}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)

	// Backoff doubles: ~100ms before the second attempt, ~200ms before the third
	firstDelay := attemptTimes[1].Sub(attemptTimes[0])
	secondDelay := attemptTimes[2].Sub(attemptTimes[1])
	assert.GreaterOrEqual(t, firstDelay, 100*time.Millisecond)
	assert.Less(t, firstDelay, 200*time.Millisecond)
	assert.GreaterOrEqual(t, secondDelay, 200*time.Millisecond)
	assert.Less(t, secondDelay, 400*time.Millisecond)
}

func TestWithStoreRetry_NonThrottleErrorPropagatesImmediately(t *testing.T) {
	attempts := 0
	boom := errors.New("constraint violation")

	err := withStoreRetry(context.Background(), func() error {
		attempts++
		return boom
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, boom)
}

func TestWithStoreRetry_ExhaustionSurfacesStoreUnavailable(t *testing.T) {
	attempts := 0

	err := withStoreRetry(context.Background(), func() error {
		attempts++
		return &ThrottleError{Err: errors.New("server busy")}
	})

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestIsThrottle(t *testing.T) {
	assert.True(t, IsThrottle(&ThrottleError{Err: errors.New("busy")}))
	assert.True(t, IsThrottle(errors.Wrap(&ThrottleError{Err: errors.New("busy")}, "saving")))
	assert.False(t, IsThrottle(errors.New("busy")))
	assert.False(t, IsThrottle(nil))
}
