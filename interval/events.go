package interval

import (
	"github.com/iotaledger/smartinterval/event"
)

// Events contains the events of a Controller. They are triggered outside the Controller's lock, so hooks may call
// back into the Controller.
type Events struct {
	// Started is triggered with the Delay of every newly created timer.
	Started *event.Event1[Delay]

	// Stopped is triggered whenever a running timer gets retired.
	Stopped *event.Event

	// Fired is triggered after every firing with the total number of firings so far.
	Fired *event.Event1[uint64]

	// Faulted is triggered with the error that a callback panicked with.
	Faulted *event.Event1[error]

	// TornDown is triggered once, when the Controller is torn down.
	TornDown *event.Event
}

// NewEvents creates a new Events instance.
func NewEvents() *Events {
	return &Events{
		Started:  event.New1[Delay](),
		Stopped:  event.New(),
		Fired:    event.New1[uint64](),
		Faulted:  event.New1[error](),
		TornDown: event.New(event.WithMaxTriggerCount(1)),
	}
}
