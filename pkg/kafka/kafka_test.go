package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

type memReader struct {
	mu        sync.Mutex
	queue     chan kafka.Message
	committed []kafka.Message
}

func newMemReader(msgs ...kafka.Message) *memReader {
	r := &memReader{queue: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.queue <- m
	}
	return r
}

func (r *memReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.queue:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *memReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *memReader) Committed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func (r *memReader) Close() error { return nil }

type flakyHandler struct {
	mu       sync.Mutex
	failures int
	calls    int
	err      error
}

func (h *flakyHandler) Topic() string { return "pace.samples" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.err != nil {
		return h.err
	}
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func testConfig() *ConsumerConfig {
	return &ConsumerConfig{
		WorkerCount: 1,
		BufferSize:  4,
		RetryMax:    3,
		BackoffMin:  time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
		DLQTopic:    "pace.samples.dlq",
	}
}

func TestProducerPublishesJSON(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w, "gzip")

	require.NoError(t, p.Publish(context.Background(), "pace.snapshots", []byte("2026-10-18"), map[string]int{"steps": 4321}))
	require.NoError(t, p.PublishMessage(context.Background(), "pace.logs", "raw"))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "pace.snapshots", w.msgs[0].Topic)
	assert.Equal(t, "2026-10-18", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"steps":4321}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))
}

func TestProducerWrapsWriteError(t *testing.T) {
	p := NewProducerWithWriter(&memWriter{err: errors.New("broker down")}, "gzip")
	err := p.Publish(context.Background(), "t", nil, "x")
	assert.ErrorContains(t, err, "broker down")
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	c := newConsumer(testConfig(), nil)
	h := &flakyHandler{failures: 2}
	c.RegisterHandler(h)
	r := newMemReader(kafka.Message{Topic: h.Topic(), Value: []byte(`{}`)})
	c.readers[h.Topic()] = r

	c.run()
	require.Eventually(t, func() bool { return r.Committed() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	assert.Equal(t, 3, h.calls)
}

func TestConsumerSendsExhaustedMessageToDLQ(t *testing.T) {
	c := newConsumer(testConfig(), nil)
	dlq := &memWriter{}
	c.dlq = dlq
	h := &flakyHandler{failures: 100}
	c.RegisterHandler(h)
	r := newMemReader(kafka.Message{Topic: h.Topic(), Value: []byte(`bad`)})
	c.readers[h.Topic()] = r

	c.run()
	require.Eventually(t, func() bool { return r.Committed() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	assert.Equal(t, 4, h.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "pace.samples.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "source_topic", dlq.msgs[0].Headers[0].Key)
}

func TestConsumerDoesNotRetryPermanentErrors(t *testing.T) {
	c := newConsumer(testConfig(), nil)
	h := &flakyHandler{err: Permanent(errors.New("malformed"))}

	attempts, err := c.handleWithRetry(h, nil)
	assert.Equal(t, 1, attempts)
	assert.ErrorContains(t, err, "malformed")
	c.cancel()
}
