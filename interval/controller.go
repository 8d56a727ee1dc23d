// Package interval implements a repeating action that only runs while its hosting page is visible and that is stopped
// for good when its owner is torn down.
package interval

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/iotaledger/smartinterval/options"
	"github.com/iotaledger/smartinterval/timer"
	"github.com/iotaledger/smartinterval/visibility"
)

// State is the scheduling state of a Controller.
type State uint8

const (
	// StatePaused means that no timer is active.
	StatePaused State = iota
	// StateRunning means that a timer is active and the callback fires every Delay.
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}

	return "paused"
}

// Controller fires the most recently supplied callback every Delay while the page reported by its visibility
// Notifier is visible. It owns at most one timer at any time. Every change of the Delay and every visibility
// transition retires the current timer before a fresh one is (maybe) created, so elapsed time is never carried over.
type Controller struct {
	Events *Events

	timers      timer.Service
	notifier    visibility.Notifier
	interactive bool

	name         string
	logger       *zap.SugaredLogger
	faultHandler func(error)

	// callback is read when a timer fires, never when it is scheduled.
	callback    func()
	delay       Delay
	attached    bool
	tornDown    bool
	handle      timer.Handle
	generation  uint64
	unsubscribe func()
	mutex       mutex

	// firingMutex serializes the firings of retired and current timers.
	firingMutex mutex

	firings  atomic.Uint64
	faults   atomic.Uint64
	inFlight sync.WaitGroup
}

// New creates a paused Controller. Without a timer service or with a non-interactive Notifier (nil,
// visibility.Headless) the Controller never subscribes and never schedules anything.
func New(timers timer.Service, notifier visibility.Notifier, opts ...options.Option[Controller]) *Controller {
	return options.Apply(&Controller{
		Events:      NewEvents(),
		timers:      timers,
		notifier:    notifier,
		interactive: timers != nil && visibility.IsInteractive(notifier),
		name:        "interval",
		logger:      zap.NewNop().Sugar(),
	}, opts)
}

// Attach supplies the current callback and Delay. It is meant to be called on every update of the owner: a changed
// callback is picked up by the next firing without touching the timer, a changed Delay restarts the timer.
func (c *Controller) Attach(callback func(), delay Delay) {
	c.update(delay, func() { c.callback = callback })
}

// SetCallback replaces the callback without changing the scheduling state.
func (c *Controller) SetCallback(callback func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.tornDown {
		c.callback = callback
	}
}

// SetDelay changes the Delay and keeps the current callback.
func (c *Controller) SetDelay(delay Delay) {
	c.update(delay, nil)
}

// Delay returns the current Delay.
func (c *Controller) Delay() Delay {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.delay
}

// State returns whether a timer is currently active.
func (c *Controller) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.handle != nil {
		return StateRunning
	}

	return StatePaused
}

// IsTornDown returns true if Teardown was called.
func (c *Controller) IsTornDown() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.tornDown
}

// Firings returns the number of times the callback was invoked.
func (c *Controller) Firings() uint64 {
	return c.firings.Load()
}

// Faults returns the number of firings in which the callback panicked.
func (c *Controller) Faults() uint64 {
	return c.faults.Load()
}

// Teardown retires the timer and removes the visibility subscription. No firing starts after Teardown returned.
// It is safe to call Teardown multiple times and before Attach.
func (c *Controller) Teardown() {
	c.mutex.Lock()
	if c.tornDown {
		c.mutex.Unlock()

		return
	}

	c.tornDown = true
	stopped := c.retire()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.callback = nil
	c.mutex.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	c.announce(stopped, false, Paused)
	c.logger.Debugw("interval torn down", "name", c.name, "firings", c.firings.Load())

	c.Events.TornDown.Trigger()
}

// WaitForGracefulShutdown waits until a firing that was already in progress when Teardown was called has returned.
// It returns immediately if the Controller was not torn down yet and must not be called from within the callback.
func (c *Controller) WaitForGracefulShutdown() {
	// firings only register before tornDown is set, so waiting afterwards can not race with Add
	if !c.IsTornDown() {
		return
	}

	c.inFlight.Wait()
}

// update applies the optional callback change and reconciles if the Delay changed or this is the first update.
func (c *Controller) update(delay Delay, setCallback func()) {
	c.mutex.Lock()
	if c.tornDown {
		c.mutex.Unlock()

		return
	}

	if setCallback != nil {
		setCallback()
	}

	if c.attached && c.delay == delay {
		c.mutex.Unlock()

		return
	}

	if !c.attached {
		c.attached = true
		c.subscribe()
	}
	c.delay = delay
	stopped, started := c.reconcile()
	c.mutex.Unlock()

	c.announce(stopped, started, delay)
}

// subscribe starts listening for visibility changes (the mutex must be held).
func (c *Controller) subscribe() {
	if !c.interactive {
		return
	}

	c.unsubscribe = c.notifier.OnChange(c.onVisibilityChanged)
}

// onVisibilityChanged pauses the timer when the page gets hidden and starts a fresh one when it becomes visible again.
func (c *Controller) onVisibilityChanged(visibility.State) {
	c.mutex.Lock()
	if c.tornDown || !c.attached {
		c.mutex.Unlock()

		return
	}

	var stopped, started bool
	if c.pageVisible() {
		if !c.delay.IsPaused() {
			stopped, started = c.reconcile()
		}
	} else {
		stopped = c.retire()
	}
	delay := c.delay
	c.mutex.Unlock()

	c.announce(stopped, started, delay)
}

// pageVisible checks the current visibility (the mutex must be held).
func (c *Controller) pageVisible() bool {
	return c.notifier.IsVisible() && c.notifier.State() == visibility.Visible
}

// reconcile retires the current timer and creates a new one if the environment is interactive, the page is visible
// and the Delay is valid (the mutex must be held).
func (c *Controller) reconcile() (stopped, started bool) {
	stopped = c.retire()

	if !c.interactive || c.delay.IsPaused() || !c.pageVisible() {
		return stopped, false
	}

	c.generation++
	generation := c.generation
	c.handle = c.timers.Schedule(func() { c.fire(generation) }, c.delay.Duration())

	return stopped, true
}

// retire cancels the current timer if there is one (the mutex must be held).
func (c *Controller) retire() (stopped bool) {
	if c.handle == nil {
		return false
	}

	c.timers.Cancel(c.handle)
	c.handle = nil
	c.generation++

	return true
}

// fire invokes the current callback if the timer of the given generation is still the active one. Firings never
// overlap: a tick that had to wait for a previous firing is dropped if its timer was retired in the meantime.
func (c *Controller) fire(generation uint64) {
	c.firingMutex.Lock()
	defer c.firingMutex.Unlock()

	c.mutex.Lock()
	if c.tornDown || c.handle == nil || generation != c.generation {
		c.mutex.Unlock()

		return
	}

	callback := c.callback
	c.inFlight.Add(1)
	c.mutex.Unlock()

	defer c.inFlight.Done()

	if callback == nil {
		return
	}

	firings := c.firings.Inc()
	if err := invoke(callback); err != nil {
		c.faults.Inc()
		c.reportFault(err)
	}

	c.Events.Fired.Trigger(firings)
}

// reportFault logs the error of a panicking callback and forwards it to the fault handler and the Faulted event.
func (c *Controller) reportFault(err error) {
	c.logger.Errorw("interval callback failed", "name", c.name, "error", err)

	if c.faultHandler != nil {
		c.faultHandler(err)
	}

	c.Events.Faulted.Trigger(err)
}

// announce logs state changes and triggers the corresponding events.
func (c *Controller) announce(stopped, started bool, delay Delay) {
	if stopped {
		c.logger.Debugw("interval stopped", "name", c.name)
		c.Events.Stopped.Trigger()
	}

	if started {
		c.logger.Debugw("interval started", "name", c.name, "delay", delay.String())
		c.Events.Started.Trigger(delay)
	}
}

// invoke runs the callback and turns a panic into an error, so a single failing firing does not end the schedule.
func invoke(callback func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if recoveredErr, ok := r.(error); ok {
				err = errors.Wrap(recoveredErr, "callback panicked")

				return
			}

			err = errors.Errorf("callback panicked: %v", r)
		}
	}()

	callback()

	return nil
}
