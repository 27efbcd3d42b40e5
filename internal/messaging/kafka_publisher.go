package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/config"
)

// Publisher ships serialized domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// KafkaPublisher writes events to a single topic keyed by vendor.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// logging publisher otherwise.
func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Warn("KAFKA_BROKERS not provided; domain events are only logged")
		return &LogPublisher{logger: logger}
	}
	logger.Info("kafka publisher configured", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return &KafkaPublisher{writer: newWriter(cfg, logger)}
}

// newWriter builds an async writer; delivery failures surface in the log.
func newWriter(cfg config.KafkaConfig, logger *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka delivery failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	carrier := headerCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: carrier.headers,
		Time:    time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher records events in the application log.
type LogPublisher struct {
	logger *zap.Logger
}

func (p *LogPublisher) Publish(_ context.Context, key string, payload []byte) error {
	p.logger.Info("domain event", zap.String("key", key), zap.ByteString("payload", payload))
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// headerCarrier adapts kafka headers to the otel TextMapCarrier interface.
type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range c.headers {
		if h.Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}
