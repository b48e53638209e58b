//go:build integration

package kafka_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixcore/internal/platform/kafka"
	"pixcore/pkg/testutil/containers"
)

type collectingHandler struct {
	mu       sync.Mutex
	failures int
	got      []*kafka.Message
	done     chan struct{}
	want     int
}

func newCollectingHandler(want, failures int) *collectingHandler {
	return &collectingHandler{failures: failures, done: make(chan struct{}), want: want}
}

func (h *collectingHandler) Handle(_ context.Context, msg *kafka.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failures > 0 {
		h.failures--
		return errors.New("transient downstream failure")
	}
	h.got = append(h.got, msg)
	if len(h.got) == h.want {
		close(h.done)
	}
	return nil
}

func (h *collectingHandler) messages() []*kafka.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*kafka.Message(nil), h.got...)
}

func TestKafkaRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	const topic = "pixcore.commands.test"
	require.NoError(t, kafka.EnsureTopics(ctx, rp.Brokers, 1, topic))

	producer, err := kafka.NewProducer(rp.Brokers)
	require.NoError(t, err)
	t.Cleanup(producer.Close)

	t.Run("consumer delivers produced records in order", func(t *testing.T) {
		handler := newCollectingHandler(3, 0)
		consumer, err := kafka.NewConsumer(rp.Brokers, "group-roundtrip", []string{topic}, handler)
		require.NoError(t, err)

		runCtx, cancel := context.WithCancel(ctx)
		finished := make(chan error, 1)
		go func() { finished <- consumer.Run(runCtx) }()

		for _, key := range []string{"key-1", "key-2", "key-3"} {
			require.NoError(t, producer.ProduceSync(ctx, topic, []byte(key), []byte(`{"cmd":"`+key+`"}`)))
		}

		select {
		case <-handler.done:
		case <-time.After(30 * time.Second):
			t.Fatal("timed out waiting for messages")
		}

		cancel()
		consumer.Close()
		<-finished

		got := handler.messages()
		require.Len(t, got, 3)
		assert.Equal(t, "key-1", string(got[0].Key))
		assert.Equal(t, "key-3", string(got[2].Key))
	})

	t.Run("handler failure blocks until redelivery succeeds", func(t *testing.T) {
		handler := newCollectingHandler(1, 2)
		consumer, err := kafka.NewConsumer(rp.Brokers, "group-retry", []string{topic},
			handler, kafka.WithRetryBackoff(10*time.Millisecond, 50*time.Millisecond))
		require.NoError(t, err)

		runCtx, cancel := context.WithCancel(ctx)
		finished := make(chan error, 1)
		go func() { finished <- consumer.Run(runCtx) }()

		select {
		case <-handler.done:
		case <-time.After(30 * time.Second):
			t.Fatal("timed out waiting for retried message")
		}

		cancel()
		consumer.Close()
		<-finished
	})
}
