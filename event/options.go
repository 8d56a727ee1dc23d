package event

import (
	"go.uber.org/atomic"

	"github.com/iotaledger/smartinterval/options"
)

// WithMaxTriggerCount sets the maximum number of times an entity shall be triggered (0 means unlimited).
func WithMaxTriggerCount(maxTriggerCount uint64) Option {
	return func(triggerSettings *triggerSettings) {
		triggerSettings.maxTriggerCount = maxTriggerCount
	}
}

// triggerSettings is a struct that contains trigger related settings and logic.
type triggerSettings struct {
	triggerCount    atomic.Uint64
	maxTriggerCount uint64
}

// WasTriggered returns true if Trigger was called at least once.
func (t *triggerSettings) WasTriggered() bool {
	return t.triggerCount.Load() > 0
}

// TriggerCount returns the number of times Trigger was called.
func (t *triggerSettings) TriggerCount() int {
	return int(t.triggerCount.Load())
}

// MaxTriggerCount returns the maximum number of times Trigger can be called.
func (t *triggerSettings) MaxTriggerCount() int {
	return int(t.maxTriggerCount)
}

// currentTriggerExceedsMaxTriggerCount counts the current trigger and reports if it exceeds the limit.
func (t *triggerSettings) currentTriggerExceedsMaxTriggerCount() bool {
	return t.triggerCount.Inc() > t.maxTriggerCount && t.maxTriggerCount != 0
}

// Option is a function that configures the triggerSettings.
type Option = options.Option[triggerSettings]
