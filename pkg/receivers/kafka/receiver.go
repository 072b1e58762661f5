// Package kafka consumes lead domain events from the CRM's Kafka topic and
// feeds them into the engine so matching automations start.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/events"
)

const defaultConsumerGroup = "dripflow-lead-receiver"

// Config holds the Kafka consumer settings. Zero values fall back to the
// KAFKA_BROKERS environment variable and sane defaults.
type Config struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// LeadReceiver subscribes to the lead event topic and starts automations.
type LeadReceiver struct {
	engine   *engine.Engine
	logger   *slog.Logger
	config   Config
	consumer sarama.ConsumerGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewLeadReceiver(eng *engine.Engine, logger *slog.Logger, config Config) *LeadReceiver {
	if config.Topic == "" {
		config.Topic = events.LeadTopic
	}

	if config.ConsumerGroup == "" {
		config.ConsumerGroup = defaultConsumerGroup
	}

	if len(config.Brokers) == 0 {
		config.Brokers = brokersFromEnv()
	}

	return &LeadReceiver{
		engine: eng,
		logger: logger.With("module", "kafka_lead_receiver"),
		config: config,
	}
}

func (r *LeadReceiver) Validate() error {
	if len(r.config.Brokers) == 0 {
		return errors.New("kafka brokers are required")
	}

	if r.config.Topic == "" {
		return errors.New("kafka topic is required")
	}

	return nil
}

func (r *LeadReceiver) Start(ctx context.Context) error {
	if err := r.Validate(); err != nil {
		return err
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Group.Session.Timeout = 10 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumerGroup(r.config.Brokers, r.config.ConsumerGroup, config)
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	r.consumer = consumer

	handler := &leadConsumerHandler{receiver: r, logger: r.logger}

	go func() {
		for {
			select {
			case <-r.ctx.Done():
				r.logger.Info("Kafka lead receiver context cancelled")

				return
			default:
				if err := consumer.Consume(r.ctx, []string{r.config.Topic}, handler); err != nil {
					r.logger.Error("Kafka consumer error", "error", err)
					time.Sleep(5 * time.Second)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case err := <-consumer.Errors():
				if err != nil {
					r.logger.Error("Kafka consumer group error", "error", err)
				}
			case <-r.ctx.Done():
				return
			}
		}
	}()

	r.logger.Info("Kafka lead receiver started",
		"topic", r.config.Topic,
		"consumer_group", r.config.ConsumerGroup)

	return nil
}

func (r *LeadReceiver) Stop(_ context.Context) error {
	r.logger.Info("Stopping Kafka lead receiver")

	if r.cancel != nil {
		r.cancel()
	}

	if r.consumer != nil {
		return r.consumer.Close()
	}

	return nil
}

func brokersFromEnv() []string {
	brokersStr := os.Getenv("KAFKA_BROKERS")
	if brokersStr == "" {
		brokersStr = "localhost:9092"
	}

	brokers := strings.Split(brokersStr, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	return brokers
}

// leadConsumerHandler implements sarama.ConsumerGroupHandler.
type leadConsumerHandler struct {
	receiver *LeadReceiver
	logger   *slog.Logger
}

func (h *leadConsumerHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session started")

	return nil
}

func (h *leadConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session ended")

	return nil
}

func (h *leadConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.logger.Debug("Received lead event",
			"topic", message.Topic,
			"partition", message.Partition,
			"offset", message.Offset)

		event, err := decodeLeadEvent(message.Value)
		if err != nil {
			// A malformed event is logged and committed: redelivery
			// cannot fix it.
			h.logger.Error("Failed to decode lead event", "error", err, "offset", message.Offset)
			session.MarkMessage(message, "")

			continue
		}

		if err := h.receiver.engine.HandleLeadEvent(session.Context(), event); err != nil {
			h.logger.Error("Failed to handle lead event",
				"event_type", event.Type,
				"lead_id", leadID(event),
				"error", err)
		}

		session.MarkMessage(message, "")
	}

	return nil
}

func decodeLeadEvent(payload []byte) (*events.LeadEvent, error) {
	var event events.LeadEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead event: %w", err)
	}

	if event.Type == "" {
		return nil, errors.New("lead event has no type")
	}

	if event.Lead == nil {
		return nil, errors.New("lead event has no lead payload")
	}

	return &event, nil
}

func leadID(event *events.LeadEvent) string {
	if event.Lead == nil {
		return ""
	}

	return event.Lead.ID
}
