package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/config"
)

func TestNewPublisherWithoutBrokersLogsOnly(t *testing.T) {
	publisher := NewPublisher(config.KafkaConfig{Topic: "commerce.events"}, zap.NewNop())
	_, ok := publisher.(*LogPublisher)
	require.True(t, ok)
	assert.NoError(t, publisher.Publish(context.Background(), "vendor-1", []byte(`{}`)))
	assert.NoError(t, publisher.Close())
}

func TestNewWriterDoesNotWaitForAcks(t *testing.T) {
	writer := newWriter(config.KafkaConfig{Brokers: []string{"kafka-1:9092"}, Topic: "commerce.events"}, zap.NewNop())
	assert.True(t, writer.Async)
	require.NotNil(t, writer.Completion)
	assert.Equal(t, "commerce.events", writer.Topic)
}

func TestHeaderCarrier(t *testing.T) {
	carrier := &headerCarrier{}
	carrier.Set("traceparent", "00-a-b-01")
	carrier.Set("traceparent", "00-c-d-01")
	assert.Equal(t, "00-c-d-01", carrier.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, carrier.Keys())
	assert.Empty(t, carrier.Get("missing"))
}
