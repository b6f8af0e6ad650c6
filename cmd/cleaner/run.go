package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os/signal"
	"strconv"

	"github.com/boristopalov/cleaner/pkg/agent"
	"github.com/boristopalov/cleaner/pkg/config"
	"github.com/boristopalov/cleaner/pkg/environment"
	"github.com/boristopalov/cleaner/pkg/logging"
	"github.com/boristopalov/cleaner/pkg/messaging"
	"github.com/boristopalov/cleaner/pkg/report"
	"github.com/boristopalov/cleaner/pkg/simulation"
	"github.com/spf13/cobra"
)

const (
	traceSubscriber = "trace"
	// traceBuffer absorbs bursts while the writer goroutine drains events.
	traceBuffer = 256
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a cleaning simulation",
		Long: `Run places one agent in room 0 of a row of rooms and lets it clean until
it can no longer act usefully or the step limit is hit. Rooms left unspecified get
random initial dirt drawn from the same seeded generator as the run.

Initial dirtiness takes comma-separated or space-separated levels:
  cleaner run --rooms 3 --initial-dirtiness 1,0,3
  cleaner run --rooms 3 --initial-dirtiness 1 0 3`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, cfg, args); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
			defer stop()

			return runSimulation(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().String("config", "", "Path to a YAML config file")
	cmd.Flags().Int("rooms", 10, "Number of rooms in the environment")
	cmd.Flags().Int("steps", 100, "Maximum number of simulation steps")
	cmd.Flags().String("seed", "", "Random seed for reproducibility, any 64-bit integer (default: random)")
	cmd.Flags().IntSlice("initial-dirtiness", nil, "Initial dirtiness levels for rooms (0-5, 0=clean), comma- or space-separated")
	cmd.Flags().Int("history", config.DefaultHistoryCapacity, "Number of recent steps kept in memory (0 keeps every step)")
	cmd.Flags().String("output", config.OutputText, "Result format: text, json or yaml")
	cmd.Flags().String("log-level", "info", "Log level: info, debug or trace")

	return cmd
}

// applyFlags overrides cfg with every flag set on the command line. Positional
// args continue the --initial-dirtiness list.
func applyFlags(cmd *cobra.Command, cfg *config.SimulationConfig, args []string) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("rooms") {
		if cfg.Rooms, err = flags.GetInt("rooms"); err != nil {
			return err
		}
	}
	if flags.Changed("steps") {
		if cfg.Steps, err = flags.GetInt("steps"); err != nil {
			return err
		}
	}
	if flags.Changed("seed") {
		raw, _ := flags.GetString("seed")
		seed, err := config.ParseSeed(raw)
		if err != nil {
			return err
		}
		cfg.Seed = &seed
	}
	if flags.Changed("initial-dirtiness") {
		if cfg.InitialDirtiness, err = flags.GetIntSlice("initial-dirtiness"); err != nil {
			return err
		}
		for _, arg := range args {
			level, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("invalid dirtiness level %q", arg)
			}
			cfg.InitialDirtiness = append(cfg.InitialDirtiness, level)
		}
	} else if len(args) > 0 {
		return fmt.Errorf("unexpected arguments %v", args)
	}
	if flags.Changed("history") {
		if cfg.HistoryCapacity, err = flags.GetInt("history"); err != nil {
			return err
		}
	}
	if flags.Changed("output") {
		if cfg.Output, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	if flags.Changed("log-level") {
		if cfg.Logging.Level, err = flags.GetString("log-level"); err != nil {
			return err
		}
	}
	return nil
}

// runSimulation executes one validated run, writing the report to stdout and
// logs to stderr.
func runSimulation(ctx context.Context, cfg *config.SimulationConfig, stdout, stderr io.Writer) error {
	logger := logging.NewLogger(cfg.Logging.Level, stderr)

	var seed uint64
	if cfg.Seed != nil {
		seed = *cfg.Seed
	} else {
		seed = rand.Uint64()
	}
	logger.Debug("seeding run", "seed", seed)

	rng := simulation.NewRand(seed)
	initial := cfg.InitialDirtiness
	if initial == nil {
		initial = environment.RandomDirtiness(rng, cfg.Rooms)
	}

	if cfg.Output == config.OutputText {
		energy := agent.EnergyPerRoom * float64(cfg.Rooms)
		if err := report.WriteStart(stdout, cfg.Rooms, cfg.Steps, initial, energy); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	broker := messaging.NewBroker()
	defer broker.Reset()

	trace, err := logging.NewTraceLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer trace.Close()

	sim, err := simulation.New(cfg.Rooms, cfg.Steps, initial,
		simulation.WithRand(rng),
		simulation.WithLogger(logger),
		simulation.WithBroker(broker),
		simulation.WithHistoryCapacity(cfg.HistoryCapacity),
	)
	if err != nil {
		return err
	}

	if trace != nil {
		wait, err := traceEvents(broker, trace, logger)
		if err != nil {
			return err
		}
		defer wait()
	}

	if err := sim.Run(ctx); err != nil {
		return fmt.Errorf("simulation interrupted: %w", err)
	}

	return report.Write(stdout, sim.Results(), cfg.Output)
}

// traceEvents subscribes trace to broker. The returned function detaches the
// subscription and blocks until every received event has been written.
func traceEvents(broker *messaging.SimpleBroker, trace *logging.TraceLogger, logger *slog.Logger) (func(), error) {
	ch := make(chan messaging.Event, traceBuffer)
	if err := broker.Subscribe(traceSubscriber, ch); err != nil {
		return nil, fmt.Errorf("subscribing trace: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range ch {
			if err := trace.Log(evt); err != nil {
				logger.Warn("failed to write trace", "step", evt.Step, "error", err)
			}
		}
	}()

	return func() {
		if err := broker.Unsubscribe(traceSubscriber); err != nil {
			logger.Warn("failed to unsubscribe trace", "error", err)
		}
		close(ch)
		<-done
	}, nil
}
