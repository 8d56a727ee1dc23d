package event

import (
	"sync"
)

// Hook is a container that holds a trigger function and its trigger settings.
type Hook[TriggerFunc any] struct {
	trigger    TriggerFunc
	unhook     func()
	unhookOnce sync.Once

	*triggerSettings
}

// Unhook removes the trigger function from the event. It is safe to call Unhook multiple times.
func (h *Hook[TriggerFunc]) Unhook() {
	h.unhookOnce.Do(h.unhook)
}
