package timer

import (
	"context"
	"sync"
	"time"

	"github.com/iotaledger/smartinterval/options"
)

// region RealService //////////////////////////////////////////////////////////////////////////////////////////////////

// RealService is a Service that is backed by the wall clock. Every scheduled action runs on its own goroutine.
type RealService struct {
	ctx              context.Context
	ctxCancel        context.CancelFunc
	minInterval      time.Duration
	gracefulShutdown sync.WaitGroup
}

// NewService creates a RealService. All of its tickers are stopped once the optional parent context is done or
// Shutdown is called.
func NewService(opts ...options.Option[RealService]) *RealService {
	return options.Apply(&RealService{
		ctx:         context.Background(),
		minInterval: DefaultMinInterval,
	}, opts, func(s *RealService) {
		s.ctx, s.ctxCancel = context.WithCancel(s.ctx)
	})
}

// Schedule starts a new Ticker that executes the action every interval.
func (s *RealService) Schedule(action func(), interval time.Duration) Handle {
	return newTicker(s.ctx, &s.gracefulShutdown, action, clampInterval(interval, s.minInterval))
}

// Cancel shuts down the Ticker behind the Handle.
func (s *RealService) Cancel(handle Handle) {
	if ticker, ok := handle.(*Ticker); ok && ticker != nil {
		ticker.Shutdown()
	}
}

// Shutdown stops all tickers of the service.
func (s *RealService) Shutdown() {
	s.ctxCancel()
}

// WaitForGracefulShutdown waits until every ticker of the service has terminated, including its last handler call.
func (s *RealService) WaitForGracefulShutdown() {
	s.gracefulShutdown.Wait()
}

// WithContext sets the parent context of the service.
func WithContext(ctx context.Context) options.Option[RealService] {
	return func(s *RealService) {
		s.ctx = ctx
	}
}

// WithMinInterval sets the interval that shorter intervals get clamped to.
func WithMinInterval(minInterval time.Duration) options.Option[RealService] {
	return func(s *RealService) {
		if minInterval > 0 {
			s.minInterval = minInterval
		}
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Ticker ///////////////////////////////////////////////////////////////////////////////////////////////////////

// Ticker is a task that gets executed repeatedly. It drops ticks to make up for slow executions.
type Ticker struct {
	ctx         context.Context
	ctxCancel   context.CancelFunc
	handler     func()
	interval    time.Duration
	handlerDone sync.WaitGroup
}

func newTicker(parentCtx context.Context, serviceDone *sync.WaitGroup, handler func(), interval time.Duration) *Ticker {
	ctx, ctxCancel := context.WithCancel(parentCtx)

	t := &Ticker{
		ctx:       ctx,
		ctxCancel: ctxCancel,
		handler:   handler,
		interval:  interval,
	}

	t.handlerDone.Add(1)
	serviceDone.Add(1)
	go func() {
		defer serviceDone.Done()

		t.run()
	}()

	return t
}

// Interval returns the interval of the Ticker.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Shutdown shuts down the Ticker.
func (t *Ticker) Shutdown() {
	t.ctxCancel()
}

// WaitForGracefulShutdown waits until the Ticker was shut down and the last handler has terminated.
func (t *Ticker) WaitForGracefulShutdown() {
	t.handlerDone.Wait()
}

// run is an internal utility function that executes the ticker logic.
func (t *Ticker) run() {
	defer t.handlerDone.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			// both channels may be ready at once; shutdown wins
			if t.ctx.Err() != nil {
				return
			}

			t.handler()
		}
	}
}

func (t *Ticker) isHandle() {}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
