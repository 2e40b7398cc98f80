package metricsink

import (
	"encoding/json"

	"github.com/Shopify/sarama"
)

// KafkaPublisher fans flushed batches out to a Kafka topic, mirroring the
// teacher's datasync/chaindatafetcher/kafka producer. It is an optional
// C3 sink: a batch is still considered durably persisted once the
// primary RowStore accepts it, regardless of whether the Kafka publish
// succeeds.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher dials brokers and returns a publisher for topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{producer: producer, topic: topic}, nil
}

// Publish sends the batch as one JSON-encoded Kafka message. Errors are
// logged, not surfaced to the caller, since Kafka delivery is best-effort
// relative to the primary row store.
func (k *KafkaPublisher) Publish(rows []Row) {
	b, err := json.Marshal(rows)
	if err != nil {
		logger.Warnw("kafka publish: marshal failed", "err", err)
		return
	}
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		logger.Warnw("kafka publish failed", "err", err)
	}
}

// Close releases the underlying producer.
func (k *KafkaPublisher) Close() error { return k.producer.Close() }
