package visibility

// Notifier reports the visibility of the hosting page and announces its changes.
type Notifier interface {
	// IsVisible returns true if the page is currently shown to the user.
	IsVisible() bool

	// State returns the current visibility state.
	State() State

	// OnChange registers a listener that is called with the new state on every visibility change. The returned
	// function removes the listener again and is safe to call multiple times.
	OnChange(listener func(State)) (unsubscribe func())
}

// Interactive is implemented by Notifiers that can tell whether they are backed by a real page. A Notifier that
// reports false represents a server-side (headless) environment in which nothing should be scheduled.
type Interactive interface {
	Interactive() bool
}

// IsInteractive returns true if the given Notifier belongs to an interactive environment.
func IsInteractive(notifier Notifier) bool {
	if notifier == nil {
		return false
	}

	if interactive, ok := notifier.(Interactive); ok {
		return interactive.Interactive()
	}

	return true
}

// Headless is the Notifier of environments without a page: always visible, subscriptions are no-ops.
var Headless Notifier = headless{}

type headless struct{}

func (headless) IsVisible() bool { return true }

func (headless) State() State { return Visible }

func (headless) OnChange(func(State)) func() { return func() {} }

func (headless) Interactive() bool { return false }
