package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dripflow/dripflow/pkg/cmd"
	"github.com/dripflow/dripflow/pkg/collaborators/httpapi"
	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/log"
	"github.com/dripflow/dripflow/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "dripflow-api",
		EnableShellCompletion: true,
		Usage:                 "Start the automation REST API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				Value:   9091,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "backend-url",
				Usage:    "Base URL of the CRM backend API",
				Required: true,
				Sources:  cli.EnvVars("BACKEND_URL"),
			},
			&cli.StringFlag{
				Name:    "backend-api-key",
				Usage:   "API key for the CRM backend",
				Sources: cli.EnvVars("BACKEND_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			tracerProvider, err := otelhelper.InitTracer(ctx, "dripflow-api")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			logger := log.WithModule("dripflow-api")

			logger.InfoContext(ctx, "Initializing Dripflow API")

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			collaborators := httpapi.New(command.String("backend-url"), command.String("backend-api-key"))
			registry := cmd.NewRegistry(logger, collaborators)
			eng := engine.NewEngine(persistence, eventBus, registry, collaborators, logger)

			api := NewAPI(logger, eng, persistence, registry)

			return api.Start(command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
