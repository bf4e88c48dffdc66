package ingest

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/example/ride-companion/internal/models"
)

// PositionProducer publishes accepted samples to the position stream so
// fleet-side consumers (see cmd/consumer) can mirror them.
type PositionProducer struct {
	writer *kafka.Writer
}

func NewPositionProducer(brokers []string, topic string) *PositionProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &PositionProducer{writer: w}
}

// PublishPosition writes one update keyed by member id, so a member's
// positions stay ordered within a partition.
func (p *PositionProducer) PublishPosition(ctx context.Context, u models.PositionUpdate) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(u.MemberID), Value: b})
}

func (p *PositionProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
