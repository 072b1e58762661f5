//go:build integration
// +build integration

package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/dripflow/dripflow/pkg/cmd"
	"github.com/dripflow/dripflow/pkg/engine"
	"github.com/dripflow/dripflow/pkg/events"
	"github.com/dripflow/dripflow/pkg/mocks"
	"github.com/dripflow/dripflow/pkg/models"
	"github.com/dripflow/dripflow/pkg/testutil"
)

// kafkaSetup holds the Kafka test container and its broker address.
type kafkaSetup struct {
	container *kafkacontainer.KafkaContainer
	brokers   string
}

func setupKafkaContainer(t *testing.T) *kafkaSetup {
	t.Helper()

	ctx := context.Background()

	container, err := kafkacontainer.RunContainer(ctx,
		kafkacontainer.WithClusterID("test-cluster"),
		testcontainers.WithImage("confluentinc/confluent-local:7.5.0"),
	)
	require.NoError(t, err)

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	return &kafkaSetup{container: container, brokers: brokers[0]}
}

func (ks *kafkaSetup) cleanup(t *testing.T) {
	t.Helper()

	if ks.container != nil {
		assert.NoError(t, ks.container.Terminate(context.Background()))
	}
}

func (ks *kafkaSetup) createTopic(t *testing.T, topic string) {
	t.Helper()

	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0

	admin, err := sarama.NewClusterAdmin([]string{ks.brokers}, config)
	require.NoError(t, err)

	defer admin.Close()

	err = admin.CreateTopic(topic, &sarama.TopicDetail{
		NumPartitions:     1,
		ReplicationFactor: 1,
	}, false)
	require.NoError(t, err)
}

func (ks *kafkaSetup) publishLeadEvent(t *testing.T, topic string, event *events.LeadEvent) {
	t.Helper()

	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer([]string{ks.brokers}, config)
	require.NoError(t, err)

	defer producer.Close()

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	_, _, err = producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.Lead.ID),
		Value: sarama.ByteEncoder(payload),
	})
	require.NoError(t, err)
}

func TestLeadReceiver_IntegrationWithRealKafka(t *testing.T) {
	kafka := setupKafkaContainer(t)
	defer kafka.cleanup(t)

	topic := "integration-lead-events"
	kafka.createTopic(t, topic)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	persistence, err := cmd.NewPersistence(ctx, logger, "file://"+t.TempDir())
	require.NoError(t, err)

	defer persistence.Close(ctx)

	lead := testutil.CreateTestLead()
	collaborators, _, _, _, _ := mocks.Collaborators(mocks.NewLeadStoreMock(lead))

	eventBus := cmd.NewEventBus("gochannel", logger)
	defer eventBus.Close()

	registry := cmd.NewRegistry(logger, collaborators)
	eng := engine.NewEngine(persistence, eventBus, registry, collaborators, logger)

	automation := testutil.NewAutomation(lead.OrganizationID).
		WithTrigger(models.TriggerLeadCreated).
		Node("n1", "analytics", nil).
		Build()
	require.NoError(t, persistence.Automations().Save(ctx, automation))

	receiver := NewLeadReceiver(eng, logger, Config{
		Brokers:       []string{kafka.brokers},
		Topic:         topic,
		ConsumerGroup: "dripflow-integration-test",
	})
	require.NoError(t, receiver.Start(ctx))

	defer func() {
		assert.NoError(t, receiver.Stop(ctx))
	}()

	// Give the consumer group time to join before producing.
	time.Sleep(5 * time.Second)

	kafka.publishLeadEvent(t, topic, &events.LeadEvent{
		ID:             "evt-1",
		Type:           events.LeadCreatedEvent,
		Timestamp:      time.Now().UTC(),
		OrganizationID: lead.OrganizationID,
		Lead:           lead,
	})

	require.Eventually(t, func() bool {
		runs, err := persistence.Runs().ListByLead(ctx, lead.ID)

		return err == nil && len(runs) == 1
	}, 30*time.Second, 500*time.Millisecond, "expected the lead event to start a run")

	runs, err := persistence.Runs().ListByLead(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, automation.ID, runs[0].AutomationID)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
}

func TestLeadReceiver_IntegrationSkipsMalformedEvents(t *testing.T) {
	kafka := setupKafkaContainer(t)
	defer kafka.cleanup(t)

	topic := "integration-lead-events-malformed"
	kafka.createTopic(t, topic)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	persistence, err := cmd.NewPersistence(ctx, logger, "file://"+t.TempDir())
	require.NoError(t, err)

	defer persistence.Close(ctx)

	lead := testutil.CreateTestLead()
	collaborators, _, _, _, _ := mocks.Collaborators(mocks.NewLeadStoreMock(lead))

	eventBus := cmd.NewEventBus("gochannel", logger)
	defer eventBus.Close()

	registry := cmd.NewRegistry(logger, collaborators)
	eng := engine.NewEngine(persistence, eventBus, registry, collaborators, logger)

	automation := testutil.NewAutomation(lead.OrganizationID).
		WithTrigger(models.TriggerLeadCreated).
		Node("n1", "analytics", nil).
		Build()
	require.NoError(t, persistence.Automations().Save(ctx, automation))

	receiver := NewLeadReceiver(eng, logger, Config{
		Brokers:       []string{kafka.brokers},
		Topic:         topic,
		ConsumerGroup: "dripflow-integration-malformed",
	})
	require.NoError(t, receiver.Start(ctx))

	defer func() {
		assert.NoError(t, receiver.Stop(ctx))
	}()

	time.Sleep(5 * time.Second)

	// The garbage message is committed and skipped; the valid one behind
	// it still starts a run.
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer([]string{kafka.brokers}, config)
	require.NoError(t, err)

	_, _, err = producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.StringEncoder("not json at all"),
	})
	require.NoError(t, err)
	require.NoError(t, producer.Close())

	kafka.publishLeadEvent(t, topic, &events.LeadEvent{
		ID:             "evt-2",
		Type:           events.LeadCreatedEvent,
		Timestamp:      time.Now().UTC(),
		OrganizationID: lead.OrganizationID,
		Lead:           lead,
	})

	require.Eventually(t, func() bool {
		runs, err := persistence.Runs().ListByLead(ctx, lead.ID)

		return err == nil && len(runs) == 1
	}, 30*time.Second, 500*time.Millisecond, "expected the valid lead event to start a run")
}
