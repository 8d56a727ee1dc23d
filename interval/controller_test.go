package interval

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/iotaledger/smartinterval/timer"
	"github.com/iotaledger/smartinterval/visibility"
)

type testFramework struct {
	clock      *timer.Manual
	tracker    *visibility.Tracker
	controller *Controller
	counter    *atomic.Uint64
}

func newTestFramework(t *testing.T, delay Delay) *testFramework {
	tf := &testFramework{
		clock:   timer.NewManual(time.Unix(0, 0)),
		tracker: visibility.NewTracker(visibility.Visible),
		counter: atomic.NewUint64(0),
	}
	tf.controller = New(tf.clock, tf.tracker, WithName(t.Name()))
	tf.controller.Attach(tf.tick, delay)

	t.Cleanup(tf.controller.Teardown)

	return tf
}

func (tf *testFramework) tick() {
	tf.counter.Inc()
}

func (tf *testFramework) advance(milliseconds int) {
	tf.clock.Advance(time.Duration(milliseconds) * time.Millisecond)
}

func TestController_FiresAtInterval(t *testing.T) {
	tf := newTestFramework(t, Milliseconds(1000))
	require.Equal(t, StateRunning, tf.controller.State())

	tf.advance(999)
	assert.Equal(t, uint64(0), tf.counter.Load())

	tf.advance(1)
	assert.Equal(t, uint64(1), tf.counter.Load())

	tf.advance(1000)
	assert.Equal(t, uint64(2), tf.counter.Load())

	tf.advance(3000)
	assert.Equal(t, uint64(5), tf.counter.Load())
	assert.Equal(t, uint64(5), tf.controller.Firings())
}

func TestController_PausedDelay(t *testing.T) {
	tf := newTestFramework(t, Milliseconds(1000))

	tf.advance(1000)
	require.Equal(t, uint64(1), tf.counter.Load())

	tf.controller.SetDelay(Paused)
	assert.Equal(t, StatePaused, tf.controller.State())
	assert.Equal(t, 0, tf.clock.Pending())

	tf.advance(5000)
	assert.Equal(t, uint64(1), tf.counter.Load())
}

func TestController_ResumeFromPausedStartsFresh(t *testing.T) {
	tf := newTestFramework(t, Paused)
	assert.Equal(t, StatePaused, tf.controller.State())

	tf.advance(2500)
	require.Equal(t, uint64(0), tf.counter.Load())

	tf.controller.SetDelay(Milliseconds(1000))

	tf.advance(999)
	assert.Equal(t, uint64(0), tf.counter.Load())

	tf.advance(1)
	assert.Equal(t, uint64(1), tf.counter.Load())
}

func TestController_DelayChangeRestarts(t *testing.T) {
	tf := newTestFramework(t, Milliseconds(1000))

	tf.advance(800)
	tf.controller.Attach(tf.tick, Milliseconds(500))

	// the in-flight 1000ms period is discarded
	tf.advance(499)
	assert.Equal(t, uint64(0), tf.counter.Load())

	tf.advance(1)
	assert.Equal(t, uint64(1), tf.counter.Load())

	tf.advance(1000)
	assert.Equal(t, uint64(3), tf.counter.Load())
	assert.Equal(t, 1, tf.clock.Pending())
}

func TestController_SameDelayKeepsTimer(t *testing.T) {
	tf := newTestFramework(t, Milliseconds(1000))

	tf.advance(600)
	tf.controller.Attach(tf.tick, Milliseconds(1000))
	tf.controller.SetDelay(Every(time.Second))

	tf.advance(400)
	assert.Equal(t, uint64(1), tf.counter.Load())
}

func TestController_HiddenPausesAndVisibleRestartsFresh(t *testing.T) {
	tf := newTestFramework(t, Milliseconds(1000))

	tf.advance(1000)
	require.Equal(t, uint64(1), tf.counter.Load())

	tf.advance(700)
	tf.tracker.Hide()
	assert.Equal(t, StatePaused, tf.controller.State())

	tf.advance(5000)
	assert.Equal(t, uint64(1), tf.counter.Load())

	tf.tracker.Show()
	assert.Equal(t, StateRunning, tf.controller.State())

	// no carry-over of the 700ms that elapsed before hiding
	tf.advance(999)
	assert.Equal(t, uint64(1), tf.counter.Load())

	tf.advance(1)
	assert.Equal(t, uint64(2), tf.counter.Load())
}

func TestController_MultipleVisibilityToggles(t *testing.T) {
	tf := newTestFramework(t, Milliseconds(1000))

	for i := 0; i < 3; i++ {
		tf.advance(1000)
		tf.tracker.Hide()
		tf.advance(3000)
		tf.tracker.Show()
	}

	assert.Equal(t, uint64(3), tf.counter.Load())
	assert.Equal(t, 1, tf.clock.Pending())
}

func TestController_PrerenderIsNotVisible(t *testing.T) {
	tf := newTestFramework(t, Milliseconds(100))

	tf.tracker.Set(visibility.Prerender)
	tf.advance(1000)
	assert.Equal(t, uint64(0), tf.counter.Load())

	tf.tracker.Show()
	tf.advance(100)
	assert.Equal(t, uint64(1), tf.counter.Load())
}

func TestController_StartsHidden(t *testing.T) {
	clock := timer.NewManual(time.Unix(0, 0))
	tracker := visibility.NewTracker(visibility.Hidden)
	counter := atomic.NewUint64(0)

	controller := New(clock, tracker)
	defer controller.Teardown()

	controller.Attach(func() { counter.Inc() }, Milliseconds(100))
	assert.Equal(t, StatePaused, controller.State())

	clock.Advance(time.Second)
	assert.Equal(t, uint64(0), counter.Load())

	tracker.Show()
	clock.Advance(time.Second)
	assert.Equal(t, uint64(10), counter.Load())
}

func TestController_VisibleWithPausedDelayStaysPaused(t *testing.T) {
	tf := newTestFramework(t, Paused)

	tf.tracker.Hide()
	tf.tracker.Show()
	tf.advance(5000)

	assert.Equal(t, StatePaused, tf.controller.State())
	assert.Equal(t, uint64(0), tf.counter.Load())
}

func TestController_Teardown(t *testing.T) {
	tf := newTestFramework(t, Milliseconds(1000))

	tf.advance(1000)
	tf.controller.Teardown()
	assert.True(t, tf.controller.IsTornDown())
	assert.Equal(t, StatePaused, tf.controller.State())
	assert.Equal(t, 0, tf.clock.Pending())
	assert.Equal(t, 0, tf.tracker.Listeners())

	tf.advance(5000)
	assert.Equal(t, uint64(1), tf.counter.Load())

	// nothing revives a torn down controller
	tf.controller.Attach(tf.tick, Milliseconds(10))
	tf.controller.SetDelay(Milliseconds(10))
	tf.tracker.Hide()
	tf.tracker.Show()
	tf.advance(5000)

	assert.Equal(t, uint64(1), tf.counter.Load())
	assert.Equal(t, StatePaused, tf.controller.State())

	assert.NotPanics(t, tf.controller.Teardown)
}

func TestController_TeardownWhileHidden(t *testing.T) {
	tf := newTestFramework(t, Milliseconds(1000))

	tf.tracker.Hide()
	tf.controller.Teardown()

	assert.NotPanics(t, func() { tf.tracker.Show() })
	tf.advance(5000)

	assert.Equal(t, uint64(0), tf.counter.Load())
	assert.Equal(t, 0, tf.clock.Pending())
}

func TestController_TeardownBeforeAttach(t *testing.T) {
	controller := New(timer.NewManual(time.Unix(0, 0)), visibility.NewTracker(visibility.Visible))

	assert.NotPanics(t, controller.Teardown)
	assert.NotPanics(t, controller.Teardown)
	assert.True(t, controller.IsTornDown())
}

func TestController_TeardownFromCallback(t *testing.T) {
	clock := timer.NewManual(time.Unix(0, 0))
	counter := atomic.NewUint64(0)

	var controller *Controller
	controller = New(clock, visibility.NewTracker(visibility.Visible))
	controller.Attach(func() {
		if counter.Inc() == 2 {
			controller.Teardown()
		}
	}, Milliseconds(10))

	clock.Advance(time.Second)
	controller.WaitForGracefulShutdown()

	assert.Equal(t, uint64(2), counter.Load())
	assert.Equal(t, 0, clock.Pending())
}

func TestController_UsesLatestCallback(t *testing.T) {
	tf := newTestFramework(t, Milliseconds(1000))

	var calls []string
	tf.controller.Attach(func() { calls = append(calls, "first") }, Milliseconds(1000))
	tf.advance(1000)

	tf.controller.Attach(func() { calls = append(calls, "second") }, Milliseconds(1000))
	tf.advance(500)
	tf.controller.SetCallback(func() { calls = append(calls, "third") })
	tf.advance(500)

	assert.Equal(t, []string{"first", "third"}, calls)
	assert.Equal(t, uint64(0), tf.counter.Load())
}

func TestController_CallbackFaultKeepsSchedule(t *testing.T) {
	clock := timer.NewManual(time.Unix(0, 0))

	var faults []error
	counter := atomic.NewUint64(0)
	controller := New(clock, visibility.NewTracker(visibility.Visible), WithFaultHandler(func(err error) {
		faults = append(faults, err)
	}))
	defer controller.Teardown()

	faulted := atomic.NewUint64(0)
	controller.Events.Faulted.Hook(func(error) { faulted.Inc() })

	errBoom := errors.New("boom")
	controller.Attach(func() {
		switch counter.Inc() {
		case 1:
			panic(errBoom)
		case 2:
			panic("plain panic")
		}
	}, Milliseconds(100))

	clock.Advance(500 * time.Millisecond)

	assert.Equal(t, uint64(5), counter.Load())
	assert.Equal(t, uint64(5), controller.Firings())
	assert.Equal(t, uint64(2), controller.Faults())
	assert.Equal(t, uint64(2), faulted.Load())
	require.Len(t, faults, 2)
	assert.ErrorIs(t, faults[0], errBoom)
	assert.Contains(t, faults[1].Error(), "plain panic")
}

func TestController_Events(t *testing.T) {
	clock := timer.NewManual(time.Unix(0, 0))
	tracker := visibility.NewTracker(visibility.Visible)
	controller := New(clock, tracker)

	var log []string
	controller.Events.Started.Hook(func(delay Delay) { log = append(log, "started "+delay.String()) })
	controller.Events.Stopped.Hook(func() { log = append(log, "stopped") })
	controller.Events.TornDown.Hook(func() { log = append(log, "torn down") })
	fired := atomic.NewUint64(0)
	controller.Events.Fired.Hook(func(count uint64) { fired.Store(count) })

	controller.Attach(func() {}, Milliseconds(100))
	clock.Advance(300 * time.Millisecond)
	controller.SetDelay(Milliseconds(200))
	tracker.Hide()
	tracker.Show()
	controller.SetDelay(Paused)
	controller.Teardown()
	controller.Teardown()

	assert.Equal(t, []string{
		"started 100ms",
		"stopped",
		"started 200ms",
		"stopped",
		"started 200ms",
		"stopped",
		"torn down",
	}, log)
	assert.Equal(t, uint64(3), fired.Load())
}

func TestController_NonInteractiveEnvironment(t *testing.T) {
	clock := timer.NewManual(time.Unix(0, 0))
	counter := atomic.NewUint64(0)

	for name, controller := range map[string]*Controller{
		"headless":        New(clock, visibility.Headless),
		"nil notifier":    New(clock, nil),
		"nil timer":       New(nil, visibility.NewTracker(visibility.Visible)),
		"nil environment": New(nil, nil),
	} {
		t.Run(name, func(t *testing.T) {
			controller.Attach(func() { counter.Inc() }, Milliseconds(10))
			controller.SetDelay(Milliseconds(20))
			clock.Advance(time.Second)

			assert.Equal(t, StatePaused, controller.State())
			assert.NotPanics(t, controller.Teardown)
		})
	}

	assert.Equal(t, uint64(0), counter.Load())
	assert.Equal(t, 0, clock.Pending())
}

func TestController_InvalidDelayIsPaused(t *testing.T) {
	tf := newTestFramework(t, DelayFrom(-1))
	assert.Equal(t, StatePaused, tf.controller.State())

	tf.controller.SetDelay(DelayFrom("not a number"))
	tf.advance(5000)
	assert.Equal(t, uint64(0), tf.counter.Load())

	tf.controller.SetDelay(DelayFrom(250))
	tf.advance(1000)
	assert.Equal(t, uint64(4), tf.counter.Load())
	assert.Equal(t, Milliseconds(250), tf.controller.Delay())
}

func TestController_MultipleControllers(t *testing.T) {
	clock := timer.NewManual(time.Unix(0, 0))
	tracker := visibility.NewTracker(visibility.Visible)

	fast, slow := atomic.NewUint64(0), atomic.NewUint64(0)
	fastController := New(clock, tracker)
	slowController := New(clock, tracker)
	defer fastController.Teardown()
	defer slowController.Teardown()

	fastController.Attach(func() { fast.Inc() }, Milliseconds(100))
	slowController.Attach(func() { slow.Inc() }, Milliseconds(250))

	clock.Advance(time.Second)
	tracker.Hide()
	clock.Advance(time.Second)
	slowController.Teardown()
	tracker.Show()
	clock.Advance(time.Second)

	assert.Equal(t, uint64(20), fast.Load())
	assert.Equal(t, uint64(4), slow.Load())
	assert.Equal(t, 1, tracker.Listeners())
}

func TestController_RealTimerService(t *testing.T) {
	service := timer.NewService()
	defer service.Shutdown()

	tracker := visibility.NewTracker(visibility.Visible)
	counter := atomic.NewUint64(0)

	controller := New(service, tracker)
	controller.Attach(func() { counter.Inc() }, Milliseconds(5))

	assert.Eventually(t, func() bool { return counter.Load() >= 3 }, 5*time.Second, time.Millisecond)

	tracker.Hide()
	// let a firing that passed its check before the hide finish
	time.Sleep(10 * time.Millisecond)
	hidden := counter.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, hidden, counter.Load())

	tracker.Show()
	assert.Eventually(t, func() bool { return counter.Load() >= hidden+3 }, 5*time.Second, time.Millisecond)

	controller.Teardown()
	controller.WaitForGracefulShutdown()
	stopped := counter.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, counter.Load())
}

func storeMax(maxValue *atomic.Int64, value int64) {
	for {
		observed := maxValue.Load()
		if value <= observed || maxValue.CAS(observed, value) {
			return
		}
	}
}

func TestController_FiringsDoNotOverlapAcrossRestarts(t *testing.T) {
	service := timer.NewService()
	defer service.Shutdown()

	running, maxRunning := atomic.NewInt64(0), atomic.NewInt64(0)
	started := atomic.NewUint64(0)

	controller := New(service, visibility.NewTracker(visibility.Visible))
	controller.Attach(func() {
		current := running.Inc()
		defer running.Dec()

		storeMax(maxRunning, current)

		started.Inc()
		time.Sleep(50 * time.Millisecond)
	}, Milliseconds(5))

	assert.Eventually(t, func() bool { return running.Load() == 1 }, 5*time.Second, time.Millisecond)

	// the restarted timer ticks while the firing of the retired one is still sleeping
	controller.SetDelay(Milliseconds(1))

	assert.Eventually(t, func() bool { return started.Load() >= 3 }, 5*time.Second, time.Millisecond)

	controller.Teardown()
	controller.WaitForGracefulShutdown()

	assert.Equal(t, int64(1), maxRunning.Load())
	assert.Equal(t, int64(0), running.Load())
}

func TestController_WaitForGracefulShutdownBeforeTeardown(t *testing.T) {
	service := timer.NewService()
	defer service.Shutdown()

	controller := New(service, visibility.NewTracker(visibility.Visible))
	controller.Attach(func() { time.Sleep(time.Millisecond) }, Milliseconds(1))

	done := make(chan struct{})
	go func() {
		controller.WaitForGracefulShutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "waiting before teardown must return immediately")
	}

	assert.False(t, controller.IsTornDown())
	controller.Teardown()
	controller.WaitForGracefulShutdown()
}
