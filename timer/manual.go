package timer

import (
	"sync"
	"time"
)

// Manual is a Service driven by a virtual clock. Time only passes when Advance is called, which executes all due
// actions synchronously in the order of their deadlines (ties are resolved in scheduling order).
type Manual struct {
	now         time.Time
	entries     map[*manualEntry]struct{}
	sequence    uint64
	minInterval time.Duration
	mutex       sync.Mutex
}

// NewManual creates a Manual clock that starts at the given time.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:         start,
		entries:     make(map[*manualEntry]struct{}),
		minInterval: DefaultMinInterval,
	}
}

// Schedule registers the action to be executed every interval, counted from the current virtual time.
func (m *Manual) Schedule(action func(), interval time.Duration) Handle {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.sequence++
	entry := &manualEntry{
		action:   action,
		interval: clampInterval(interval, m.minInterval),
		sequence: m.sequence,
	}
	entry.deadline = m.now.Add(entry.interval)
	m.entries[entry] = struct{}{}

	return entry
}

// Cancel removes the scheduled action.
func (m *Manual) Cancel(handle Handle) {
	entry, ok := handle.(*manualEntry)
	if !ok || entry == nil {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.entries, entry)
}

// Now returns the current virtual time.
func (m *Manual) Now() time.Time {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.now
}

// Pending returns the number of scheduled (not cancelled) actions.
func (m *Manual) Pending() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return len(m.entries)
}

// Advance moves the virtual clock forward and executes every action that becomes due on the way. Actions may schedule
// and cancel other actions; the changes are honored for the remainder of the advance.
func (m *Manual) Advance(duration time.Duration) {
	m.mutex.Lock()
	target := m.now.Add(duration)
	m.mutex.Unlock()

	for {
		m.mutex.Lock()
		entry := m.nextDue(target)
		if entry == nil {
			m.now = target
			m.mutex.Unlock()

			return
		}

		m.now = entry.deadline
		entry.deadline = entry.deadline.Add(entry.interval)
		m.mutex.Unlock()

		entry.action()
	}
}

// nextDue returns the entry with the earliest deadline that is not after the target.
func (m *Manual) nextDue(target time.Time) (next *manualEntry) {
	for entry := range m.entries {
		if entry.deadline.After(target) {
			continue
		}

		if next == nil || entry.deadline.Before(next.deadline) || (entry.deadline.Equal(next.deadline) && entry.sequence < next.sequence) {
			next = entry
		}
	}

	return next
}

type manualEntry struct {
	action   func()
	interval time.Duration
	deadline time.Time
	sequence uint64
}

func (e *manualEntry) Interval() time.Duration {
	return e.interval
}

func (e *manualEntry) isHandle() {}
