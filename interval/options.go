package interval

import (
	"go.uber.org/zap"

	"github.com/iotaledger/smartinterval/options"
)

// WithName sets the name that is used in log messages.
func WithName(name string) options.Option[Controller] {
	return func(c *Controller) {
		c.name = name
	}
}

// WithLogger sets the logger of the Controller.
func WithLogger(logger *zap.SugaredLogger) options.Option[Controller] {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFaultHandler sets a function that receives the errors of panicking callbacks (in addition to the log message).
func WithFaultHandler(faultHandler func(error)) options.Option[Controller] {
	return func(c *Controller) {
		c.faultHandler = faultHandler
	}
}
