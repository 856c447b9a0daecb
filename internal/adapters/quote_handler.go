package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rzzdr/actuarial-risk-core/internal/kafka"
	"github.com/rzzdr/actuarial-risk-core/internal/pricing"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

// Publisher is the producer side used to emit pricing results
type Publisher interface {
	PublishJSON(ctx context.Context, key string, value interface{}, headers ...kafka.MessageHeader) error
}

// MessageRecorder receives per-message outcomes
type MessageRecorder interface {
	RecordMessage(topic string, err error)
}

// QuoteResult is published for every consumed pricing request
type QuoteResult struct {
	RequestID   string         `json:"request_id"`
	Quote       *pricing.Quote `json:"quote,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorType   string         `json:"error_type,omitempty"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// QuoteHandler adapts the pricer to the Kafka consumer loop
type QuoteHandler struct {
	pricer    *pricing.Pricer
	publisher Publisher
	recorder  MessageRecorder
	log       *logger.Logger
}

// NewQuoteHandler creates a handler that prices requests and publishes results
func NewQuoteHandler(pricer *pricing.Pricer, publisher Publisher) *QuoteHandler {
	return &QuoteHandler{
		pricer:    pricer,
		publisher: publisher,
		log:       logger.GetLogger("adapters.quote_handler"),
	}
}

// SetRecorder attaches a metrics recorder
func (h *QuoteHandler) SetRecorder(r MessageRecorder) {
	h.recorder = r
}

// Handle implements kafka.MessageHandler. Rejected requests are published with
// their error so callers are never left waiting; only publish failures are
// returned, and the consumer retries those.
func (h *QuoteHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	requestID := string(msg.Key)
	if requestID == "" {
		// stable across redeliveries of the same message
		source := fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
		requestID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(source)).String()
	}

	quote, err := h.price(msg.Value)
	if h.recorder != nil {
		h.recorder.RecordMessage(msg.Topic, err)
	}

	result := QuoteResult{RequestID: requestID, Quote: quote, ProcessedAt: time.Now().UTC()}
	if err != nil {
		h.log.Warnf("Pricing request %s rejected: %v", requestID, err)
		result.Error = err.Error()
		result.ErrorType = errors.TypeOf(err).String()
	}

	if err := h.publisher.PublishJSON(ctx, requestID, result); err != nil {
		return errors.Wrapf(err, "failed to publish result for %s", requestID)
	}
	return nil
}

func (h *QuoteHandler) price(payload []byte) (*pricing.Quote, error) {
	var req pricing.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errors.WithType(errors.Wrap(err, "malformed pricing request"), errors.ErrorTypeValidation)
	}
	return h.pricer.Quote(req)
}
