package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
)

// KafkaSink mirrors lifecycle events onto a Kafka topic for external
// consumers. Delivery failures are logged and swallowed; the sink must
// never affect the lifecycle itself.
type KafkaSink struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaSink returns nil when no brokers are configured.
func NewKafkaSink(cfg config.KafkaConfig, logger *zap.Logger) *KafkaSink {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &KafkaSink{writer: writer, logger: logger}
}

// Register subscribes the sink to every lifecycle event type.
func (s *KafkaSink) Register(dispatcher Dispatcher) {
	if s == nil || dispatcher == nil {
		return
	}
	for _, t := range []EventType{EventTicketCreated, EventTicketClaimed, EventTicketClosed, EventTicketDeleted} {
		dispatcher.Subscribe(t, s.handle)
	}
}

func (s *KafkaSink) handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("kafka sink encode failed", zap.Error(err))
		return nil
	}
	msg := kafka.Message{
		Key:   []byte(event.ChannelID),
		Value: payload,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Warn("kafka sink publish failed",
			zap.String("event_type", string(event.Type)), zap.Error(err))
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	if s == nil {
		return nil
	}
	return s.writer.Close()
}
