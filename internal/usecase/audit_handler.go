package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"EduPulse/internal/domain/models"
	domrepo "EduPulse/internal/domain/repository"
	pkgkafka "EduPulse/pkg/kafka"
)

// AuditHandler consumes audit entries from Kafka and writes them to the audit store.
type AuditHandler struct {
	topic   string
	store   domrepo.AuditSink
	metrics domrepo.Metrics
}

func NewAuditHandler(topic string, store domrepo.AuditSink, metrics domrepo.Metrics) *AuditHandler {
	return &AuditHandler{topic: topic, store: store, metrics: metrics}
}

func (h *AuditHandler) Topic() string { return h.topic }

func (h *AuditHandler) Handle(ctx context.Context, b []byte) error {
	var entry models.AuditEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode audit entry: %w", err)
	}
	if entry.Action == "" || entry.UserID == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("audit entry %q: missing action or user", entry.RequestID)
	}

	start := time.Now()
	err := h.store.Log(ctx, entry)
	h.metrics.RecordLatency("audit_store", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*AuditHandler)(nil)
