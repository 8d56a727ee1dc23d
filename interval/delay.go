package interval

import (
	"math"
	"reflect"
	"time"

	"github.com/spf13/cast"
)

// Delay is the period between two firings of a Controller. The zero value is Paused.
type Delay struct {
	duration time.Duration
	valid    bool
}

// Paused is the Delay that stops the Controller from scheduling.
var Paused = Delay{}

// Every returns a Delay of the given duration. Negative durations result in Paused.
func Every(duration time.Duration) Delay {
	if duration < 0 {
		return Paused
	}

	return Delay{duration: duration, valid: true}
}

// Milliseconds returns a Delay of the given number of milliseconds. Negative values result in Paused.
func Milliseconds(milliseconds int64) Delay {
	if milliseconds < 0 || milliseconds > math.MaxInt64/int64(time.Millisecond) {
		return Paused
	}

	return Every(time.Duration(milliseconds) * time.Millisecond)
}

// DelayFrom normalizes a dynamically typed value (e.g. read from a configuration file) into a Delay:
//   - nil results in Paused
//   - time.Duration values are used as is
//   - numbers are interpreted as milliseconds
//
// Everything else (including strings) and negative values result in Paused.
func DelayFrom(value any) Delay {
	switch typedValue := value.(type) {
	case nil:
		return Paused
	case Delay:
		return typedValue
	case time.Duration:
		return Every(typedValue)
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
	default:
		return Paused
	}

	milliseconds, err := cast.ToFloat64E(value)
	if err != nil || math.IsNaN(milliseconds) || math.IsInf(milliseconds, 0) || milliseconds < 0 || milliseconds >= math.MaxInt64/float64(time.Millisecond) {
		return Paused
	}

	return Every(time.Duration(milliseconds * float64(time.Millisecond)))
}

// IsPaused returns true if the Delay does not allow scheduling.
func (d Delay) IsPaused() bool {
	return !d.valid
}

// Duration returns the period of the Delay (0 if paused).
func (d Delay) Duration() time.Duration {
	return d.duration
}

func (d Delay) String() string {
	if !d.valid {
		return "paused"
	}

	return d.duration.String()
}
