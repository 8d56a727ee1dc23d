package visibility

import (
	"sync"

	"github.com/iotaledger/smartinterval/event"
)

// Tracker is a Notifier whose state is set explicitly, e.g. by a transport that receives visibilitychange
// notifications from a client, by a simulation or by tests.
type Tracker struct {
	// Changed is triggered with the new state whenever the state transitions.
	Changed *event.Event1[State]

	state      State
	stateMutex sync.RWMutex
}

// NewTracker creates a Tracker that starts in the given state.
func NewTracker(initial State) *Tracker {
	return &Tracker{
		Changed: event.New1[State](),
		state:   initial,
	}
}

// IsVisible returns true if the tracked page is visible.
func (t *Tracker) IsVisible() bool {
	return t.State().IsVisible()
}

// State returns the current state.
func (t *Tracker) State() State {
	t.stateMutex.RLock()
	defer t.stateMutex.RUnlock()

	return t.state
}

// OnChange registers a listener for state transitions.
func (t *Tracker) OnChange(listener func(State)) (unsubscribe func()) {
	return t.Changed.Hook(listener).Unhook
}

// Set updates the state and notifies the listeners if it changed. It returns true if the state changed.
func (t *Tracker) Set(state State) (changed bool) {
	t.stateMutex.Lock()
	if changed = t.state != state; changed {
		t.state = state
	}
	t.stateMutex.Unlock()

	if changed {
		t.Changed.Trigger(state)
	}

	return changed
}

// Show is a shortcut for Set(Visible).
func (t *Tracker) Show() bool {
	return t.Set(Visible)
}

// Hide is a shortcut for Set(Hidden).
func (t *Tracker) Hide() bool {
	return t.Set(Hidden)
}

// Listeners returns the number of registered listeners.
func (t *Tracker) Listeners() int {
	return t.Changed.HookCount()
}
