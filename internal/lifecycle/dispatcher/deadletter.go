package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"pixcore/internal/platform/kafka"
	dErrors "pixcore/pkg/domain-errors"
)

// deadLetterRecord is the payload written to the dead-letter topic. The
// original value is carried verbatim so operators can replay it after
// fixing the cause.
type deadLetterRecord struct {
	SourceTopic     string          `json:"sourceTopic"`
	SourcePartition int32           `json:"sourcePartition"`
	SourceOffset    int64           `json:"sourceOffset"`
	FailedAt        time.Time       `json:"failedAt"`
	ErrorCode       string          `json:"errorCode"`
	Error           string          `json:"error"`
	Payload         json.RawMessage `json:"payload"`
}

// KafkaDeadLetter parks unprocessable commands on a dedicated topic using
// a synchronous produce, since losing a dead-letter loses the only trace
// of the failure.
type KafkaDeadLetter struct {
	producer *kafka.Producer
	topic    string
	clock    func() time.Time
}

func NewKafkaDeadLetter(producer *kafka.Producer, topic string) *KafkaDeadLetter {
	return &KafkaDeadLetter{producer: producer, topic: topic, clock: time.Now}
}

func (k *KafkaDeadLetter) DeadLetter(ctx context.Context, msg *kafka.Message, cause error) error {
	payload := msg.Value
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(msg.Value))
	}
	rec := deadLetterRecord{
		SourceTopic:     msg.Topic,
		SourcePartition: msg.Partition,
		SourceOffset:    msg.Offset,
		FailedAt:        k.clock().UTC(),
		ErrorCode:       string(dErrors.CodeOf(cause)),
		Error:           cause.Error(),
		Payload:         payload,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode dead-letter record")
	}
	return k.producer.ProduceSync(ctx, k.topic, msg.Key, value)
}
