package repository

import (
	"context"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	pkgkafka "FxPulse/pkg/kafka"
)

// KafkaAdvisories publishes emitted advisories to a Kafka topic, keyed by
// symbol so per-instrument ordering survives partitioning.
type KafkaAdvisories struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ drepo.AdvisoryPublisher = (*KafkaAdvisories)(nil)

// NewKafkaAdvisories creates a publisher on the given topic.
func NewKafkaAdvisories(producer *pkgkafka.Producer, topic string) *KafkaAdvisories {
	return &KafkaAdvisories{producer: producer, topic: topic}
}

func (p *KafkaAdvisories) Publish(ctx context.Context, a *models.Advisory) error {
	return p.producer.Publish(ctx, p.topic, []byte(a.Symbol), a)
}

func (p *KafkaAdvisories) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
