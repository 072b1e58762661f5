package kafka

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripflow/dripflow/pkg/events"
)

func TestDecodeLeadEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt-1",
		"type": "lead_created",
		"organization_id": "org-1",
		"lead": {"id": "lead-1", "organization_id": "org-1", "name": "Asha Pillai"}
	}`)

	event, err := decodeLeadEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, events.LeadCreatedEvent, event.Type)
	assert.Equal(t, "lead-1", event.Lead.ID)
}

func TestDecodeLeadEventRejectsMalformedPayloads(t *testing.T) {
	cases := map[string][]byte{
		"not json":     []byte("not json"),
		"missing type": []byte(`{"lead": {"id": "lead-1"}}`),
		"missing lead": []byte(`{"type": "lead_created"}`),
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeLeadEvent(payload)
			assert.Error(t, err)
		})
	}
}

func TestValidateRequiresBrokersAndTopic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	receiver := NewLeadReceiver(nil, logger, Config{Brokers: []string{"localhost:9092"}})
	assert.NoError(t, receiver.Validate())
	assert.Equal(t, events.LeadTopic, receiver.config.Topic)
	assert.Equal(t, defaultConsumerGroup, receiver.config.ConsumerGroup)

	receiver.config.Brokers = nil
	assert.Error(t, receiver.Validate())
}
