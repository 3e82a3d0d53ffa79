package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dukex/flowengine/pkg/cmd"
	"github.com/dukex/flowengine/pkg/definition"
	"github.com/dukex/flowengine/pkg/dispatch"
	"github.com/dukex/flowengine/pkg/engine"
	"github.com/dukex/flowengine/pkg/eventbus"
	"github.com/dukex/flowengine/pkg/log"
	"github.com/dukex/flowengine/pkg/otelhelper"
	"github.com/dukex/flowengine/pkg/persistence/retention"
	"github.com/dukex/flowengine/pkg/scheduler"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 9091

func RunCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, gochannel)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka broker addresses",
			Value:   []string{"localhost:9092"},
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.BoolFlag{
			Name:    "independent-context",
			Usage:   "Give concurrently ready tasks isolated context copies",
			Value:   true,
			Sources: cli.EnvVars("INDEPENDENT_CONTEXT"),
		},
		&cli.BoolFlag{
			Name:    "key-path",
			Usage:   "Release key-callback dependents once the key groups finish",
			Value:   true,
			Sources: cli.EnvVars("KEY_PATH"),
		},
		&cli.DurationFlag{
			Name:    "retention",
			Usage:   "Age after which finished executions are removed from the file store",
			Value:   defaultRetention,
			Sources: cli.EnvVars("RETENTION"),
		},
		&cli.StringFlag{
			Name:    "retention-schedule",
			Usage:   "Cron expression of the retention sweep",
			Value:   retention.DefaultSchedule,
			Sources: cli.EnvVars("RETENTION_SCHEDULE"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		depthFlag(),
	}

	flags = append(flags, storeFlags()...)
	flags = append(flags, logFlags()...)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the scheduler, its completion listener and the HTTP API",
		Flags:   flags,
		Action:  runAction,
	}
}

func runAction(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "scheduler-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("flowengine").With("worker_id", workerID)

	logger.InfoContext(ctx, "Initializing flowengine")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tracer trace.Tracer

	if command.Bool("tracing") {
		t, shutdown, err := otelhelper.NewTracer(ctx, "flowengine")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		}()

		tracer = t
	}

	stores, err := cmd.NewStores(ctx, logger, storeConfig(command))
	if err != nil {
		return fmt.Errorf("failed to open graph store: %w", err)
	}

	defer func() {
		if err := stores.Graphs.Close(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to close graph store", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	driver, err := scheduler.NewDriver(scheduler.Config{
		Store:      stores.Graphs,
		Dispatcher: dispatch.NewEventBusDispatcher(eventBus, workerID, logger),
		Notifier:   eventbus.NewBusNotifier(eventBus, logger),
		Tracer:     tracer,
		Options:    engine.NewOptionsHolder(engineOptions(command)),
		WorkerID:   workerID,
	}, logger)
	if err != nil {
		return err
	}

	listener := dispatch.NewCompletionListener(eventBus, driver, driver, logger)

	err = listener.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start completion listener: %w", err)
	}

	if stores.Expirable != nil {
		sweeper, err := retention.NewSweeper(logger, stores.Expirable, command.String("retention-schedule"), command.Duration("retention"))
		if err != nil {
			return err
		}

		err = sweeper.Start(ctx)
		if err != nil {
			return err
		}

		defer sweeper.Stop()
	}

	loader, err := definition.NewLoader(logger)
	if err != nil {
		return err
	}

	api := NewAPI(logger, driver, loader)

	return api.Serve(ctx, command.Int("port"))
}
