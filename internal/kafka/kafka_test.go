package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// fakeReader serves queued messages then blocks until the context ends
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestPublishJSON(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducer(w, "quotes")
	assert.Equal(t, "quotes", p.Topic())

	err := p.PublishJSON(context.Background(), "q-1", map[string]float64{"price": 10.5},
		MessageHeader{Key: "class", Value: []byte("DO WW")})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	m := w.msgs[0]
	assert.Equal(t, "q-1", string(m.Key))
	var body map[string]float64
	require.NoError(t, json.Unmarshal(m.Value, &body))
	assert.Equal(t, 10.5, body["price"])
	require.Len(t, m.Headers, 2)
	assert.Equal(t, "content-type", m.Headers[1].Key)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishJSONWriteFailure(t *testing.T) {
	w := &fakeWriter{err: errors.Internal("broker unavailable")}
	p := NewProducer(w, "quotes")
	err := p.PublishJSON(context.Background(), "k", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quotes")

	err = p.PublishJSON(context.Background(), "k", func() {})
	assert.Error(t, err)
}

func TestConsumerRunHandlesAndCommits(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Topic: "requests", Offset: 1, Value: []byte("a"), Headers: []kafka.Header{{Key: "h", Value: []byte("v")}}},
		{Topic: "requests", Offset: 2, Value: []byte("b")},
		{Topic: "requests", Offset: 3, Value: []byte("c")},
	}}
	c := NewConsumer(r, "requests")

	ctx, cancel := context.WithCancel(context.Background())
	var seen []string
	err := c.Run(ctx, func(_ context.Context, msg *Message) error {
		seen = append(seen, string(msg.Value))
		if msg.Offset == 1 {
			v, ok := msg.Header("h")
			assert.True(t, ok)
			assert.Equal(t, "v", string(v))
		}
		if msg.Offset == 2 {
			return errors.Validation("bad payload")
		}
		if msg.Offset == 3 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, []int64{1, 2}, r.committed[:2])
	require.NoError(t, c.Close())
}

func TestNewClientRequiresBrokers(t *testing.T) {
	_, err := NewClient(&Config{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	client, err := NewClient(nil)
	require.NoError(t, err)
	p := client.NewProducer("quotes")
	assert.Equal(t, "quotes", p.Topic())
}

type deadLetters struct {
	msgs []*Message
}

func (d *deadLetters) ProduceMessage(_ context.Context, key, value []byte, headers []MessageHeader) error {
	d.msgs = append(d.msgs, &Message{Key: key, Value: value, Headers: headers})
	return nil
}

func fastRetries() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestConsumerKeepsFailedMessageUncommitted(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Topic: "requests", Offset: 7, Value: []byte("a")},
		{Topic: "requests", Offset: 8, Value: []byte("b")},
	}}
	c := NewConsumer(r, "requests")
	c.SetRetryPolicy(fastRetries())

	attempts := 0
	err := c.Run(context.Background(), func(_ context.Context, msg *Message) error {
		attempts++
		return errors.Internal("broker unavailable")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requests/0/7")
	assert.Equal(t, 3, attempts)
	assert.Empty(t, r.committed)
}

func TestConsumerRetriesTransientFailures(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Topic: "requests", Offset: 1, Value: []byte("a")}}}
	c := NewConsumer(r, "requests")
	c.SetRetryPolicy(fastRetries())

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := c.Run(ctx, func(_ context.Context, _ *Message) error {
		attempts++
		if attempts < 3 {
			return errors.Internal("broker unavailable")
		}
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int64{1}, r.committed)
}

func TestConsumerDeadLettersExhaustedMessages(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Topic: "requests", Offset: 1, Key: []byte("req-1"), Value: []byte("a")},
		{Topic: "requests", Offset: 2, Value: []byte("b")},
	}}
	dlq := &deadLetters{}
	c := NewConsumer(r, "requests")
	c.SetRetryPolicy(fastRetries())
	c.SetDeadLetter(dlq)

	ctx, cancel := context.WithCancel(context.Background())
	err := c.Run(ctx, func(_ context.Context, msg *Message) error {
		if msg.Offset == 1 {
			return errors.Internal("broker unavailable")
		}
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, r.committed)

	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "req-1", string(dlq.msgs[0].Key))
	reason, ok := dlq.msgs[0].Header("dlq-error")
	require.True(t, ok)
	assert.Contains(t, string(reason), "broker unavailable")
}
