package repository

import (
	"context"

	"EduPulse/internal/domain/models"
	domrepo "EduPulse/internal/domain/repository"
	pkgkafka "EduPulse/pkg/kafka"
)

// Publisher is the subset of *kafka.Producer used by the repositories.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg pkgkafka.Message) error
	Close() error
}

// KafkaAuditSink publishes audit entries; a consumer persists them.
type KafkaAuditSink struct {
	producer Publisher
	topic    string
}

func NewKafkaAuditSink(producer Publisher, topic string) *KafkaAuditSink {
	return &KafkaAuditSink{producer: producer, topic: topic}
}

var _ domrepo.AuditSink = (*KafkaAuditSink)(nil)

func (s *KafkaAuditSink) Log(ctx context.Context, entry models.AuditEntry) error {
	return s.producer.Publish(ctx, s.topic, pkgkafka.Message{
		Key:     []byte(entry.UserID),
		Value:   entry,
		Headers: map[string]string{pkgkafka.HeaderRequestID: entry.RequestID},
	})
}

// KafkaEventPublisher announces completed analyses on a topic keyed by user.
type KafkaEventPublisher struct {
	producer Publisher
	topic    string
}

func NewKafkaEventPublisher(producer Publisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func (p *KafkaEventPublisher) PublishAnalysis(ctx context.Context, ev models.AnalysisEvent) error {
	return p.producer.Publish(ctx, p.topic, pkgkafka.Message{
		Key:   []byte(ev.UserID),
		Value: ev,
		Headers: map[string]string{
			pkgkafka.HeaderRequestID: ev.RequestID,
			"event":                  "analysis.completed",
		},
	})
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
