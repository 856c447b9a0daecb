package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

// MessageHandler processes one consumed message
type MessageHandler func(ctx context.Context, msg *Message) error

// MessageReader is the subset of kafka.Reader used by Consumer
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RetryPolicy bounds the redelivery of a message whose handler failed
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the retry policy used when none is set
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// DeadLetterWriter receives messages that exhausted their retries
type DeadLetterWriter interface {
	ProduceMessage(ctx context.Context, key, value []byte, headers []MessageHeader) error
}

// Consumer reads messages from one topic and commits them once handled
type Consumer struct {
	reader       MessageReader
	topic        string
	retryBackoff time.Duration
	retry        RetryPolicy
	deadLetter   DeadLetterWriter
	log          *logger.Logger
}

// NewConsumer wraps a reader bound to topic
func NewConsumer(r MessageReader, topic string) *Consumer {
	return &Consumer{
		reader:       r,
		topic:        topic,
		retryBackoff: time.Second,
		retry:        DefaultRetryPolicy(),
		log:          logger.GetLogger("kafka.consumer"),
	}
}

// SetRetryPolicy replaces the handler retry policy
func (c *Consumer) SetRetryPolicy(p RetryPolicy) {
	defaults := DefaultRetryPolicy()
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = defaults.InitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = max(defaults.MaxInterval, p.InitialInterval)
	}
	c.retry = p
}

// SetDeadLetter routes messages that keep failing to w instead of stopping
// the consumer
func (c *Consumer) SetDeadLetter(w DeadLetterWriter) {
	c.deadLetter = w
}

// Run feeds messages to handler until ctx is done.
//
// Handler errors of type validation, domain or lookup cannot succeed on
// redelivery and are committed. Any other error is retried with exponential
// backoff. A message that exhausts its retries goes to the dead-letter writer
// when one is set; otherwise Run returns without committing it, so the group
// redelivers it after restart.
func (c *Consumer) Run(ctx context.Context, handler MessageHandler) error {
	c.log.Infof("Starting consumer for topic: %s", c.topic)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Infof("Context cancelled, stopping consumer for topic: %s", c.topic)
				return nil
			}
			c.log.Errorf("Failed to fetch message from %s: %v", c.topic, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryBackoff):
			}
			continue
		}

		if err := c.handle(ctx, m, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Errorf("Error committing offset: %v", err)
		}
	}
}

// handle returns nil once m may be committed
func (c *Consumer) handle(ctx context.Context, m kafka.Message, handler MessageHandler) error {
	msg := fromKafka(m)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.InitialInterval
	b.MaxInterval = c.retry.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := handler(ctx, msg)
		if err != nil && permanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			c.log.Warnf("Retrying message at %s/%d/%d: %v", m.Topic, m.Partition, m.Offset, err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.retry.MaxAttempts))

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case permanent(err):
		c.log.Errorf("Dropping unprocessable message at %s/%d/%d: %v", m.Topic, m.Partition, m.Offset, err)
		return nil
	}

	if c.deadLetter == nil {
		c.log.Errorf("Message at %s/%d/%d failed after %d attempts: %v", m.Topic, m.Partition, m.Offset, c.retry.MaxAttempts, err)
		return errors.Wrapf(err, "message at %s/%d/%d not processed", m.Topic, m.Partition, m.Offset)
	}

	headers := append(msg.Headers,
		MessageHeader{Key: "dlq-source-topic", Value: []byte(m.Topic)},
		MessageHeader{Key: "dlq-source-offset", Value: []byte(strconv.FormatInt(m.Offset, 10))},
		MessageHeader{Key: "dlq-error", Value: []byte(err.Error())},
	)
	if dlqErr := c.deadLetter.ProduceMessage(ctx, m.Key, m.Value, headers); dlqErr != nil {
		return errors.Wrapf(dlqErr, "failed to dead-letter message at %s/%d/%d", m.Topic, m.Partition, m.Offset)
	}
	c.log.Warnf("Dead-lettered message at %s/%d/%d: %v", m.Topic, m.Partition, m.Offset, err)
	return nil
}

func permanent(err error) bool {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeValidation, errors.ErrorTypeDomain, errors.ErrorTypeLookup:
		return true
	}
	return false
}

// Close closes the consumer
func (c *Consumer) Close() error {
	c.log.Info("Closing consumer")
	if err := c.reader.Close(); err != nil {
		return errors.Wrap(err, "failed to close consumer")
	}
	return nil
}

func fromKafka(m kafka.Message) *Message {
	msg := &Message{
		Key:       m.Key,
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Timestamp: m.Time,
	}
	if len(m.Headers) > 0 {
		msg.Headers = make([]MessageHeader, len(m.Headers))
		for i, h := range m.Headers {
			msg.Headers[i] = MessageHeader{Key: h.Key, Value: h.Value}
		}
	}
	return msg
}
