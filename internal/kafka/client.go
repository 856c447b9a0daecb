package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

// Config contains the connection settings shared by producers and consumers
type Config struct {
	Brokers        []string
	GroupID        string
	StartOffset    string
	BatchTimeout   time.Duration
	WriteTimeout   time.Duration
	CommitInterval time.Duration
	MaxBytes       int
}

// Message represents a Kafka message
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Headers   []MessageHeader
}

// MessageHeader represents a Kafka message header
type MessageHeader struct {
	Key   string
	Value []byte
}

// Header returns the value of the first header named key
func (m *Message) Header(key string) ([]byte, bool) {
	for _, h := range m.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return nil, false
}

// Client builds producers and consumers against one cluster
type Client struct {
	config *Config
	log    *logger.Logger
}

// NewClient creates a new Kafka client
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.Brokers) == 0 {
		return nil, errors.Validation("kafka needs at least one broker")
	}

	cfg := *config
	defaults := DefaultConfig()
	if cfg.GroupID == "" {
		cfg.GroupID = defaults.GroupID
	}
	if cfg.StartOffset == "" {
		cfg.StartOffset = defaults.StartOffset
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaults.BatchTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaults.MaxBytes
	}

	return &Client{
		config: &cfg,
		log:    logger.GetLogger("kafka.client"),
	}, nil
}

// NewProducer creates a producer writing to topic
func (c *Client) NewProducer(topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.config.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           c.config.BatchTimeout,
		WriteTimeout:           c.config.WriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewProducer(w, topic)
}

// NewConsumer creates a group consumer reading topic
func (c *Client) NewConsumer(topic string) *Consumer {
	startOffset := kafka.LastOffset
	if strings.EqualFold(c.config.StartOffset, "earliest") {
		startOffset = kafka.FirstOffset
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.config.Brokers,
		GroupID:        c.config.GroupID,
		Topic:          topic,
		MaxBytes:       c.config.MaxBytes,
		StartOffset:    startOffset,
		CommitInterval: c.config.CommitInterval,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			c.log.Errorf(msg, args...)
		}),
	})
	return NewConsumer(r, topic)
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		GroupID:      "actuarial-risk-engine",
		StartOffset:  "earliest",
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		MaxBytes:     10e6,
	}
}
