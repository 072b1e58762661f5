package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/receivers/kafka"
	"github.com/dripflow/dripflow/pkg/receivers/queue"
)

// ManagerConfig holds the receiver connection settings.
type ManagerConfig struct {
	RedisAddr     string
	RedisPassword string
	ResumeQueue   string
}

// EngineManager wires the engine to its inputs: the Kafka lead event
// receiver, the Redis resume queue and the timeout sweeper. It runs until
// SIGINT or SIGTERM.
type EngineManager struct {
	id      string
	logger  *slog.Logger
	engine  *engine.Engine
	sweeper *engine.Sweeper
	leads   *kafka.LeadReceiver
	resumes *queue.ResumeReceiver
}

func NewEngineManager(id string, eng *engine.Engine, logger *slog.Logger, config ManagerConfig) *EngineManager {
	logger = logger.With("module", "engine-manager")

	return &EngineManager{
		id:      id,
		logger:  logger,
		engine:  eng,
		sweeper: engine.NewSweeper(eng, logger),
		leads:   kafka.NewLeadReceiver(eng, logger, kafka.Config{}),
		resumes: queue.NewResumeReceiver(eng, logger, queue.Config{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			Queue:    config.ResumeQueue,
		}),
	}
}

func (m *EngineManager) Start(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting engine manager", "engine_id", m.id)

	if err := m.sweeper.Start(ctx); err != nil {
		return err
	}

	if err := m.leads.Start(ctx); err != nil {
		return err
	}

	if err := m.resumes.Start(ctx); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Engine started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	m.logger.InfoContext(ctx, "Shutting down engine...")

	if err := m.resumes.Stop(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to stop resume receiver", "error", err)
	}

	if err := m.leads.Stop(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to stop lead receiver", "error", err)
	}

	m.sweeper.Stop()

	return nil
}
