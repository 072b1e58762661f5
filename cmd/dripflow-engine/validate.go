package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/dripflow/dripflow/pkg/cmd"
	"github.com/dripflow/dripflow/pkg/collaborators/httpapi"
	"github.com/dripflow/dripflow/pkg/config"
	"github.com/dripflow/dripflow/pkg/log"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate every stored automation definition",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "organization-id",
				Usage:   "Restrict validation to one organization",
				Sources: cli.EnvVars("ORGANIZATION_ID"),
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

			logger := log.WithModule("dripflow-engine").With("action", "validate")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			// Executors are never run during validation; the registry is
			// only consulted for node types and config schemas.
			registry := cmd.NewRegistry(logger, httpapi.New("", ""))
			validator := config.NewValidator(registry)

			automations, err := persistence.Automations().List(ctx, command.String("organization-id"))
			if err != nil {
				return fmt.Errorf("failed to list automations: %w", err)
			}

			fmt.Println("Automation Validation Results:")
			fmt.Println("==============================")

			invalid := 0

			for _, automation := range automations {
				fmt.Printf("\nAutomation: %s (%s)\n", automation.Name, automation.ID)

				if err := validator.Validate(automation); err != nil {
					fmt.Printf("  INVALID: %v\n", err)
					invalid++

					continue
				}

				fmt.Println("  VALID")
			}

			fmt.Printf("\nValidation Summary:\n")
			fmt.Printf("  Total automations: %d\n", len(automations))
			fmt.Printf("  Valid: %d\n", len(automations)-invalid)
			fmt.Printf("  Invalid: %d\n", invalid)

			if invalid > 0 {
				return fmt.Errorf("found %d invalid automations", invalid)
			}

			return nil
		},
	}
}
