package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/config"
	"herald/internal/logger"
	"herald/pkg/models"
	"herald/pkg/retry"
)

func testConsumer(dlq Producer) *KafkaConsumer {
	return &KafkaConsumer{
		cfg: config.KafkaConfig{
			DLQTopic: "notification_events_dlq",
			Retry: config.RetryConfig{
				MaxAttempts:     3,
				InitialInterval: time.Millisecond,
				MaxInterval:     2 * time.Millisecond,
				Multiplier:      1.5,
			},
		},
		logger:      logger.NopLogger(),
		dlqProducer: dlq,
		serviceName: "test",
	}
}

func TestProcessMessageWithRetry_RetriesTransientErrors(t *testing.T) {
	c := testConsumer(nil)

	calls := 0
	err := c.processMessageWithRetry(context.Background(), models.MessageEnvelope{ID: "evt-1"}, func(ctx context.Context, msg models.MessageEnvelope) error {
		calls++
		if calls < 2 {
			return errors.New("storage unavailable")
		}
		return nil
	}, "notification_events")

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestProcessMessageWithRetry_FatalStopsImmediately(t *testing.T) {
	c := testConsumer(nil)

	calls := 0
	err := c.processMessageWithRetry(context.Background(), models.MessageEnvelope{}, func(ctx context.Context, msg models.MessageEnvelope) error {
		calls++
		return retry.NewFatalError(errors.New("unknown event type"))
	}, "notification_events")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestProcessMessageWithRetry_RecoversPanics(t *testing.T) {
	c := testConsumer(nil)

	calls := 0
	err := c.processMessageWithRetry(context.Background(), models.MessageEnvelope{}, func(ctx context.Context, msg models.MessageEnvelope) error {
		calls++
		panic("handler bug")
	}, "notification_events")

	require.Error(t, err)
	assert.True(t, retry.IsFatal(err))
	assert.Equal(t, 1, calls)
}

func TestSendToDLQ(t *testing.T) {
	dlq := NewMemoryProducer()
	c := testConsumer(dlq)

	envelope := *models.NewMessageEnvelopeBuilder().
		WithID("evt-9").
		WithEvent("package_update", map[string]interface{}{"package_name": "curl"}).
		Build()

	err := c.sendToDLQ(context.Background(), envelope, errors.New("rule store down"), "notification_events", dlqReasonMaxRetries)
	require.NoError(t, err)

	published := dlq.Messages()
	require.Len(t, published, 1)
	assert.Equal(t, "notification_events_dlq", published[0].Topic)
	assert.Equal(t, "evt-9", published[0].Envelope.ID)
	assert.Equal(t, "rule store down", published[0].Envelope.Metadata.Extra["dlq_reason"])
	assert.Equal(t, "notification_events", published[0].Envelope.Metadata.Extra["dlq_source_topic"])
}

func TestSendToDLQ_PublishFailure(t *testing.T) {
	dlq := NewMemoryProducer()
	dlq.FailWith(errors.New("broker unavailable"))
	c := testConsumer(dlq)

	err := c.sendToDLQ(context.Background(), models.MessageEnvelope{ID: "evt-1"}, errors.New("x"), "notification_events", dlqReasonFatal)
	assert.Error(t, err)
}
