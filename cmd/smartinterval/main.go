package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/iotaledger/smartinterval/configuration"
	"github.com/iotaledger/smartinterval/logger"
	"github.com/iotaledger/smartinterval/timer"
	"github.com/iotaledger/smartinterval/visibility"
)

const (
	envPrefix = "SMARTINTERVAL"

	configurationKeyInitialVisibility = "app.initialVisibility"
	configurationKeyMinInterval       = "app.minInterval"
	configurationKeyIntervals         = "intervals"
)

func main() {
	if err := run(os.Args[1:], os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "smartinterval: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string, input io.Reader) error {
	flagSet := flag.NewFlagSet("smartinterval", flag.ContinueOnError)
	configFilePath := flagSet.StringP("config", "c", "config.json", "file path of the configuration file")
	flagSet.String(configurationKeyInitialVisibility, visibility.Visible.String(), "the page visibility at startup (visible, hidden, prerender)")
	flagSet.Duration(configurationKeyMinInterval, timer.DefaultMinInterval, "the smallest interval timers are scheduled at")
	flagSet.String(logger.ConfigurationKeyLevel, logger.DefaultCfg.Level, "the minimum enabled logging level")
	flagSet.String(logger.ConfigurationKeyEncoding, logger.DefaultCfg.Encoding, "the logger's encoding (options: \"json\", \"console\")")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}

		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container := dig.New()
	for _, constructor := range []interface{}{
		func() (*configuration.Configuration, error) {
			return loadConfiguration(flagSet, *configFilePath, flagSet.Changed("config"))
		},
		logger.NewRootLoggerFromConfiguration,
		func(config *configuration.Configuration) (*timer.RealService, error) {
			return newTimerService(ctx, config)
		},
		newTracker,
		newDashboard,
	} {
		if err := container.Provide(constructor); err != nil {
			return errors.Wrap(err, "unable to provide component")
		}
	}

	return container.Invoke(func(dashboard *Dashboard, timers *timer.RealService, log *zap.SugaredLogger) error {
		//nolint:errcheck // syncing stdout fails on some platforms
		defer log.Sync()

		log.Infow("dashboard started", "intervals", len(dashboard.Status()))

		serveCommands(ctx, dashboard, input, log)

		dashboard.Shutdown()
		timers.Shutdown()
		timers.WaitForGracefulShutdown()

		log.Info("dashboard stopped")

		return nil
	})
}

// serveCommands executes the command lines of the input until it is exhausted, a quit command is received or the
// context is done.
func serveCommands(ctx context.Context, dashboard *Dashboard, input io.Reader, log *zap.SugaredLogger) {
	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				// keep the intervals running until a signal arrives once the input is closed
				<-ctx.Done()

				return
			}

			quit, err := dashboard.Execute(line)
			if err != nil {
				log.Warnw("command failed", "command", line, "error", err)

				continue
			}

			if quit {
				return
			}
		}
	}
}

func loadConfiguration(flagSet *flag.FlagSet, configFilePath string, explicitConfigFile bool) (*configuration.Configuration, error) {
	config := configuration.New()

	if err := config.LoadFile(configFilePath); err != nil {
		if explicitConfigFile || !errors.Is(err, configuration.ErrConfigDoesNotExist) {
			return nil, errors.Wrap(err, "loading config file failed")
		}
	}

	if err := config.LoadFlagSet(flagSet); err != nil {
		return nil, errors.Wrap(err, "loading flags failed")
	}

	if err := config.LoadEnvironmentVars(envPrefix); err != nil {
		return nil, errors.Wrap(err, "loading environment variables failed")
	}

	return config, nil
}

func newTimerService(ctx context.Context, config *configuration.Configuration) (*timer.RealService, error) {
	minInterval, err := config.Duration(configurationKeyMinInterval)
	if err != nil {
		return nil, err
	}

	return timer.NewService(timer.WithContext(ctx), timer.WithMinInterval(minInterval)), nil
}

func newTracker(config *configuration.Configuration) (*visibility.Tracker, error) {
	initial, err := visibility.ParseState(config.String(configurationKeyInitialVisibility))
	if err != nil {
		return nil, err
	}

	return visibility.NewTracker(initial), nil
}

type dashboardDeps struct {
	dig.In

	Config  *configuration.Configuration
	Logger  *zap.SugaredLogger
	Timers  *timer.RealService
	Tracker *visibility.Tracker
}

func newDashboard(deps dashboardDeps) (*Dashboard, error) {
	intervals := defaultIntervals
	if deps.Config.Exists(configurationKeyIntervals) {
		intervals = nil
		if err := deps.Config.Unmarshal(configurationKeyIntervals, &intervals); err != nil {
			return nil, err
		}
	}

	return NewDashboard(deps.Logger.Named("dashboard"), deps.Timers, deps.Tracker, intervals), nil
}
