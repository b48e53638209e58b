package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pixcore/internal/platform/kafka"
)

// Envelope is the JSON structure published for every domain event.
type Envelope struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// KafkaEmitter publishes domain events to a single events topic, keyed by
// event id. Production is asynchronous: delivery failures are logged by
// the producer, never surfaced to the engine's commit path.
type KafkaEmitter struct {
	producer *kafka.Producer
	topic    string
	clock    func() time.Time
}

func NewKafkaEmitter(producer *kafka.Producer, topic string) *KafkaEmitter {
	return &KafkaEmitter{producer: producer, topic: topic, clock: time.Now}
}

func (e *KafkaEmitter) Emit(ctx context.Context, name string, payload any) error {
	env := Envelope{
		ID:         uuid.NewString(),
		Name:       name,
		OccurredAt: e.clock(),
		Payload:    payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", name, err)
	}
	e.producer.Produce(ctx, e.topic, []byte(env.ID), value)
	return nil
}
