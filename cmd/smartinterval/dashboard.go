package main

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/iotaledger/smartinterval/interval"
	"github.com/iotaledger/smartinterval/timer"
	"github.com/iotaledger/smartinterval/visibility"
)

var (
	// ErrUnknownCommand is returned for input lines that are not a known command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnknownInterval is returned if a command references an interval that is not configured.
	ErrUnknownInterval = errors.New("unknown interval")
	// ErrMissingArgument is returned if a command lacks one of its arguments.
	ErrMissingArgument = errors.New("missing argument")
)

// IntervalConfig configures one named interval of the dashboard. Delay is a number of milliseconds, a Go duration
// string or empty (paused).
type IntervalConfig struct {
	Name  string      `koanf:"name"`
	Delay interface{} `koanf:"delay"`
}

// defaultIntervals are used if the configuration does not define any.
var defaultIntervals = []IntervalConfig{
	{Name: "clock", Delay: 1000},
	{Name: "metrics", Delay: 2000},
	{Name: "sync", Delay: nil},
}

// IntervalStatus is a snapshot of one interval of the dashboard.
type IntervalStatus struct {
	Name    string
	Delay   interval.Delay
	State   interval.State
	Firings uint64
}

// Dashboard runs a set of named intervals that share one page visibility.
type Dashboard struct {
	logger    *zap.SugaredLogger
	tracker   *visibility.Tracker
	intervals map[string]*interval.Controller
	ticks     map[string]*atomic.Uint64
}

// NewDashboard creates a Dashboard and attaches all configured intervals.
func NewDashboard(logger *zap.SugaredLogger, timers timer.Service, tracker *visibility.Tracker, configs []IntervalConfig) *Dashboard {
	d := &Dashboard{
		logger:    logger,
		tracker:   tracker,
		intervals: make(map[string]*interval.Controller, len(configs)),
		ticks:     make(map[string]*atomic.Uint64, len(configs)),
	}

	for _, cfg := range configs {
		name := strings.ToLower(cfg.Name)
		if _, exists := d.intervals[name]; exists {
			logger.Warnw("ignoring duplicate interval", "interval", name)

			continue
		}

		d.ticks[name] = atomic.NewUint64(0)
		d.intervals[name] = interval.New(timers, tracker, interval.WithName(name), interval.WithLogger(logger.Named(name)))
		d.intervals[name].Attach(d.tickFunc(name), configuredDelay(cfg.Delay))
	}

	return d
}

// Execute runs a single command line. It returns true if the dashboard should quit.
func (d *Dashboard) Execute(line string) (quit bool, err error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false, nil
	}

	switch command, args := fields[0], fields[1:]; command {
	case "hide":
		d.tracker.Set(visibility.Hidden)
	case "show":
		d.tracker.Set(visibility.Visible)
	case "prerender":
		d.tracker.Set(visibility.Prerender)
	case "delay":
		if len(args) < 2 {
			return false, errors.Wrap(ErrMissingArgument, "usage: delay <name> <milliseconds|duration|null>")
		}

		return false, d.setDelay(args[0], parseDelay(args[1]))
	case "pause":
		if len(args) < 1 {
			return false, errors.Wrap(ErrMissingArgument, "usage: pause <name>")
		}

		return false, d.setDelay(args[0], interval.Paused)
	case "status":
		for _, status := range d.Status() {
			d.logger.Infow("status", "interval", status.Name, "delay", status.Delay.String(), "state", status.State.String(), "firings", status.Firings)
		}
	case "quit", "exit":
		return true, nil
	default:
		return false, errors.Wrap(ErrUnknownCommand, command)
	}

	return false, nil
}

// Status returns a snapshot of all intervals ordered by name.
func (d *Dashboard) Status() []IntervalStatus {
	statuses := make([]IntervalStatus, 0, len(d.intervals))
	for name, controller := range d.intervals {
		statuses = append(statuses, IntervalStatus{
			Name:    name,
			Delay:   controller.Delay(),
			State:   controller.State(),
			Firings: controller.Firings(),
		})
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })

	return statuses
}

// Shutdown tears down all intervals and waits for running callbacks to return.
func (d *Dashboard) Shutdown() {
	for _, controller := range d.intervals {
		controller.Teardown()
	}

	for _, controller := range d.intervals {
		controller.WaitForGracefulShutdown()
	}
}

func (d *Dashboard) setDelay(name string, delay interval.Delay) error {
	controller, exists := d.intervals[name]
	if !exists {
		return errors.Wrap(ErrUnknownInterval, name)
	}

	controller.SetDelay(delay)

	return nil
}

func (d *Dashboard) tickFunc(name string) func() {
	return func() {
		d.logger.Infow("tick", "interval", name, "count", d.ticks[name].Inc())
	}
}

// parseDelay reads plain numbers as milliseconds and everything else as a Go duration ("null" pauses).
func parseDelay(value string) interval.Delay {
	if milliseconds, err := strconv.ParseFloat(value, 64); err == nil {
		return interval.DelayFrom(milliseconds)
	}

	duration, err := cast.ToDurationE(value)
	if err != nil {
		return interval.Paused
	}

	return interval.Every(duration)
}

// configuredDelay converts the delay of an IntervalConfig; strings go through parseDelay, the rest through
// interval.DelayFrom.
func configuredDelay(value interface{}) interval.Delay {
	if text, ok := value.(string); ok {
		return parseDelay(strings.TrimSpace(text))
	}

	return interval.DelayFrom(value)
}
