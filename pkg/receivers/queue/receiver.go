// Package queue consumes resume events from a Redis list. Messaging and
// telephony gateways push inbound replies, call outcomes and task
// completions here; the receiver pops them and resumes the waiting runs.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/events"
)

const DefaultQueue = "dripflow:resume"

// Resume event kinds carried in the envelope.
const (
	KindInboundMessage = "inbound_message"
	KindCallOutcome    = "call_outcome"
	KindTaskCompleted  = "task_completed"
)

// envelope wraps one resume event with its kind tag.
type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       string
	Queue    string
}

// ResumeReceiver pops resume events off a Redis list and dispatches them to
// the engine.
type ResumeReceiver struct {
	engine *engine.Engine
	logger *slog.Logger
	config Config

	client redis.UniversalClient
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewResumeReceiver(eng *engine.Engine, logger *slog.Logger, config Config) *ResumeReceiver {
	if config.Queue == "" {
		config.Queue = DefaultQueue
	}

	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	return &ResumeReceiver{
		engine: eng,
		logger: logger.With("module", "queue_resume_receiver", "queue", config.Queue),
		config: config,
		stopCh: make(chan struct{}),
	}
}

func (r *ResumeReceiver) Validate() error {
	if r.config.Queue == "" {
		return errors.New("resume queue name is required")
	}

	if r.config.DB != "" {
		if _, err := strconv.Atoi(r.config.DB); err != nil {
			return fmt.Errorf("invalid redis db value: %w", err)
		}
	}

	return nil
}

func (r *ResumeReceiver) Start(ctx context.Context) error {
	if err := r.Validate(); err != nil {
		return err
	}

	db := 0
	if r.config.DB != "" {
		db, _ = strconv.Atoi(r.config.DB)
	}

	r.client = redis.NewClient(&redis.Options{
		Addr:     r.config.Addr,
		Password: r.config.Password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.logger.InfoContext(ctx, "Connected to Redis", "addr", r.config.Addr, "db", db)

	r.wg.Add(1)

	go r.consume(ctx)

	return nil
}

func (r *ResumeReceiver) Stop(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Stopping resume receiver")

	close(r.stopCh)
	r.wg.Wait()

	if r.client != nil {
		if err := r.client.Close(); err != nil {
			r.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}

func (r *ResumeReceiver) consume(ctx context.Context) {
	defer r.wg.Done()

	r.logger.InfoContext(ctx, "Starting resume event consumer")

	for {
		select {
		case <-r.stopCh:
			r.logger.InfoContext(ctx, "Resume consumer stopped")

			return
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Context cancelled, stopping resume consumer")

			return
		default:
			if err := r.processMessage(ctx); err != nil {
				r.logger.ErrorContext(ctx, "Error processing resume event", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (r *ResumeReceiver) processMessage(ctx context.Context) error {
	result, err := r.client.BLPop(ctx, 1*time.Second, r.config.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop resume event from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	return r.dispatch(ctx, []byte(result[1]))
}

// dispatch decodes the envelope and routes it to the matching engine
// handler. Unknown kinds are logged and dropped; the engine already treats
// events with no waiting run as no-ops, so every path here is safe to
// deliver more than once.
func (r *ResumeReceiver) dispatch(ctx context.Context, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to unmarshal resume envelope: %w", err)
	}

	switch env.Kind {
	case KindInboundMessage:
		var message events.InboundMessage
		if err := json.Unmarshal(env.Payload, &message); err != nil {
			return fmt.Errorf("failed to unmarshal inbound message: %w", err)
		}

		return r.engine.HandleInbound(ctx, message)

	case KindCallOutcome:
		var outcome events.CallOutcome
		if err := json.Unmarshal(env.Payload, &outcome); err != nil {
			return fmt.Errorf("failed to unmarshal call outcome: %w", err)
		}

		return r.engine.HandleCallOutcome(ctx, outcome)

	case KindTaskCompleted:
		var completed events.TaskCompleted
		if err := json.Unmarshal(env.Payload, &completed); err != nil {
			return fmt.Errorf("failed to unmarshal task completion: %w", err)
		}

		return r.engine.HandleTaskCompleted(ctx, completed)

	default:
		r.logger.WarnContext(ctx, "Dropping resume event of unknown kind", "kind", env.Kind)

		return nil
	}
}

// Enqueue pushes a resume event onto the queue. Webhook handlers use it so
// HTTP delivery and queue delivery share one code path into the engine.
func Enqueue(ctx context.Context, client redis.UniversalClient, queue, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal resume payload: %w", err)
	}

	raw, err := json.Marshal(envelope{Kind: kind, Payload: body})
	if err != nil {
		return fmt.Errorf("failed to marshal resume envelope: %w", err)
	}

	if err := client.RPush(ctx, queue, raw).Err(); err != nil {
		return fmt.Errorf("failed to enqueue resume event: %w", err)
	}

	return nil
}
