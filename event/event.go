package event

import (
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"go.uber.org/atomic"

	"github.com/iotaledger/smartinterval/options"
)

// region Event ////////////////////////////////////////////////////////////////////////////////////////////////////////

// Event is an event without trigger parameters.
type Event struct {
	*base[func()]
}

// New creates a new Event.
func New(opts ...Option) *Event {
	return &Event{base: newBase[func()](opts...)}
}

// Trigger invokes all hooks in the order they were registered.
func (e *Event) Trigger() {
	if e.currentTriggerExceedsMaxTriggerCount() {
		return
	}

	for _, hook := range e.snapshot() {
		if hook.currentTriggerExceedsMaxTriggerCount() {
			hook.Unhook()

			continue
		}

		hook.trigger()
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Event1 ///////////////////////////////////////////////////////////////////////////////////////////////////////

// Event1 is an event with a single trigger parameter.
type Event1[T any] struct {
	*base[func(T)]
}

// New1 creates a new Event1.
func New1[T any](opts ...Option) *Event1[T] {
	return &Event1[T]{base: newBase[func(T)](opts...)}
}

// Trigger invokes all hooks with the given argument in the order they were registered.
func (e *Event1[T]) Trigger(arg T) {
	if e.currentTriggerExceedsMaxTriggerCount() {
		return
	}

	for _, hook := range e.snapshot() {
		if hook.currentTriggerExceedsMaxTriggerCount() {
			hook.Unhook()

			continue
		}

		hook.trigger(arg)
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region base /////////////////////////////////////////////////////////////////////////////////////////////////////////

// base is the generic part shared by all event types.
type base[TriggerFunc any] struct {
	// hooks holds the registered hooks in registration order.
	hooks      *linkedhashmap.Map
	hooksMutex sync.RWMutex

	// hooksCounter is used to assign a unique ID to each hook.
	hooksCounter atomic.Uint64

	*triggerSettings
}

func newBase[TriggerFunc any](opts ...Option) *base[TriggerFunc] {
	return &base[TriggerFunc]{
		hooks:           linkedhashmap.New(),
		triggerSettings: options.Apply(new(triggerSettings), opts),
	}
}

// Hook registers the given function and returns the Hook that can be used to remove it again.
func (b *base[TriggerFunc]) Hook(triggerFunc TriggerFunc, opts ...Option) *Hook[TriggerFunc] {
	hookID := b.hooksCounter.Inc()

	hook := &Hook[TriggerFunc]{
		trigger:         triggerFunc,
		triggerSettings: options.Apply(new(triggerSettings), opts),
	}
	hook.unhook = func() {
		b.hooksMutex.Lock()
		defer b.hooksMutex.Unlock()

		b.hooks.Remove(hookID)
	}

	b.hooksMutex.Lock()
	defer b.hooksMutex.Unlock()

	b.hooks.Put(hookID, hook)

	return hook
}

// HookCount returns the number of currently registered hooks.
func (b *base[TriggerFunc]) HookCount() int {
	b.hooksMutex.RLock()
	defer b.hooksMutex.RUnlock()

	return b.hooks.Size()
}

// snapshot returns a copy of the registered hooks so that hooks can (un)hook while the event is triggered.
func (b *base[TriggerFunc]) snapshot() []*Hook[TriggerFunc] {
	b.hooksMutex.RLock()
	defer b.hooksMutex.RUnlock()

	hooks := make([]*Hook[TriggerFunc], 0, b.hooks.Size())
	for _, value := range b.hooks.Values() {
		//nolint:forcetypeassert // only hooks of this type are ever stored
		hooks = append(hooks, value.(*Hook[TriggerFunc]))
	}

	return hooks
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
