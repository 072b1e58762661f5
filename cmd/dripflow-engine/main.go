package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dripflow/dripflow/pkg/cmd"
	"github.com/dripflow/dripflow/pkg/collaborators/httpapi"
	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/log"
	"github.com/dripflow/dripflow/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "dripflow-engine",
		EnableShellCompletion: true,
		Usage:                 "Start the automation engine: trigger matching, run execution and timeout sweeping",
		Commands: []*cli.Command{
			NewValidateCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "engine-id",
				Aliases: []string{"id"},
				Usage:   "Custom engine ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ENGINE_ID"),
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
				Name:    "redis-addr",
				Usage:   "Redis address for the resume event queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password for the resume event queue",
				Sources: cli.EnvVars("REDIS_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "resume-queue",
				Usage:   "Redis list the resume events are popped from",
				Value:   "",
				Sources: cli.EnvVars("RESUME_QUEUE"),
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

			tracerProvider, err := otelhelper.InitTracer(ctx, "dripflow-engine")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			engineID := command.String("engine-id")
			if engineID == "" {
				engineID = "engine-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("dripflow-engine").With("engine_id", engineID)

			logger.InfoContext(ctx, "Initializing Dripflow Engine")

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

			manager := NewEngineManager(engineID, eng, logger, ManagerConfig{
				RedisAddr:     command.String("redis-addr"),
				RedisPassword: command.String("redis-password"),
				ResumeQueue:   command.String("resume-queue"),
			})

			if err := manager.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start engine", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
