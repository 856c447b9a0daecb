package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

// MessageWriter is the subset of kafka.Writer used by Producer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes messages to one topic
type Producer struct {
	writer MessageWriter
	topic  string
	log    *logger.Logger
}

// NewProducer wraps a writer bound to topic
func NewProducer(w MessageWriter, topic string) *Producer {
	return &Producer{
		writer: w,
		topic:  topic,
		log:    logger.GetLogger("kafka.producer"),
	}
}

// Topic returns the topic the producer writes to
func (p *Producer) Topic() string {
	return p.topic
}

// ProduceMessage writes a single message
func (p *Producer) ProduceMessage(ctx context.Context, key, value []byte, headers []MessageHeader) error {
	msg := kafka.Message{Key: key, Value: value}
	for _, h := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: h.Key, Value: h.Value})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Errorf("Failed to produce message to %s: %v", p.topic, err)
		return errors.Wrapf(err, "failed to produce message to %s", p.topic)
	}
	return nil
}

// PublishJSON serializes value and writes it with a JSON content-type header
func (p *Producer) PublishJSON(ctx context.Context, key string, value interface{}, headers ...MessageHeader) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to serialize message to JSON")
	}

	headers = append(headers, MessageHeader{Key: "content-type", Value: []byte("application/json")})
	return p.ProduceMessage(ctx, []byte(key), data, headers)
}

// Close flushes pending writes and closes the producer
func (p *Producer) Close() error {
	p.log.Infof("Closing producer for %s", p.topic)
	return p.writer.Close()
}
