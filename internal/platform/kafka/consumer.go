// Package kafka wraps franz-go for the engine's bus surfaces: the command
// consumer feeding the dispatcher and the producer behind event emission
// and dead-letter routing.
package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a consumed bus record, decoupled from the client library so
// handlers stay testable.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes one message. Returning nil commits the offset; an
// error blocks the partition and the message is retried with backoff, so
// handlers must only return errors worth redelivering.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer runs a consumer group, committing only after the handler
// accepts each record. At-least-once delivery is the contract: a crash
// between handle and commit redelivers, which the engine absorbs through
// its idempotency checks.
type Consumer struct {
	client     *kgo.Client
	handler    Handler
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

type ConsumerOption func(*Consumer)

func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) { c.logger = logger }
}

func WithRetryBackoff(min, max time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.minBackoff = min
		c.maxBackoff = max
	}
}

func NewConsumer(brokers []string, group string, topics []string, handler Handler, opts ...ConsumerOption) (*Consumer, error) {
	c := &Consumer{
		handler:    handler,
		logger:     slog.Default(),
		minBackoff: 250 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return nil, err
	}
	c.client = client
	return c, nil
}

// Run polls until ctx is canceled or the client closes.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handled []*kgo.Record
		iter := fetches.RecordIter()
		for !iter.Done() {
			rec := iter.Next()
			if err := c.handleWithRetry(ctx, rec); err != nil {
				// Only ctx cancellation lands here; commit what we have.
				break
			}
			handled = append(handled, rec)
		}

		if len(handled) > 0 {
			if err := c.client.CommitRecords(ctx, handled...); err != nil {
				c.logger.ErrorContext(ctx, "offset commit failed", "error", err)
			}
		}
		c.client.AllowRebalance()

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// handleWithRetry blocks the partition until the handler accepts the
// record. Transient downstream failures (registry unreachable) resolve by
// waiting, not by skipping ahead and losing the message.
func (c *Consumer) handleWithRetry(ctx context.Context, rec *kgo.Record) error {
	msg := &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Timestamp: rec.Timestamp,
	}

	backoff := c.minBackoff
	for {
		err := c.handler.Handle(ctx, msg)
		if err == nil {
			return nil
		}
		c.logger.WarnContext(ctx, "message handling failed, will retry",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}
