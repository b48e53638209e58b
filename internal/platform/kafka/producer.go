package kafka

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes records. Produce is fire-and-forget with logged
// failures (domain events); ProduceSync blocks for acknowledgment
// (dead-letters, which must not be lost).
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

type ProducerOption func(*Producer)

func WithProducerLogger(logger *slog.Logger) ProducerOption {
	return func(p *Producer) { p.logger = logger }
}

func NewProducer(brokers []string, opts ...ProducerOption) (*Producer, error) {
	p := &Producer{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

func (p *Producer) Produce(ctx context.Context, topic string, key, value []byte) {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	p.client.Produce(ctx, rec, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("produce failed",
				"topic", r.Topic,
				"key", string(r.Key),
				"error", err,
			)
		}
	})
}

func (p *Producer) ProduceSync(ctx context.Context, topic string, key, value []byte) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	return p.client.ProduceSync(ctx, rec).FirstErr()
}

func (p *Producer) Close() {
	p.client.Close()
}
