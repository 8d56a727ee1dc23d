package options

// Option is a generic type for an optional parameter according to the functional paradigm.
type Option[T any] func(*T)

// Apply applies the given options to the container object and runs the optional setup functions afterwards (e.g. to
// fill in values that depend on the applied options).
func Apply[T any](obj *T, opts []Option[T], setup ...func(instance *T)) *T {
	for _, opt := range opts {
		if opt != nil {
			opt(obj)
		}
	}

	for _, setupFunc := range setup {
		setupFunc(obj)
	}

	return obj
}
