package timer

import (
	"time"
)

// DefaultMinInterval is the smallest interval a Service schedules at. Shorter intervals (including 0) are clamped to
// it, like hosts clamp repeating timers with a zero delay.
const DefaultMinInterval = time.Millisecond

// Service schedules repeating actions.
type Service interface {
	// Schedule executes the action every interval until the returned Handle is cancelled.
	Schedule(action func(), interval time.Duration) Handle

	// Cancel stops the repeating action identified by the Handle. Cancelling a nil, foreign or already cancelled
	// Handle is a no-op.
	Cancel(handle Handle)
}

// Handle identifies a repeating action scheduled by a Service.
type Handle interface {
	// Interval returns the effective interval of the scheduled action.
	Interval() time.Duration

	isHandle()
}

// clampInterval raises the interval to the given minimum.
func clampInterval(interval, minInterval time.Duration) time.Duration {
	if interval < minInterval {
		return minInterval
	}

	return interval
}
