package repository

import (
	"context"

	"EduPulse/internal/domain/models"
)

// AuditSink records who ran an analysis. Failures must not fail the request.
type AuditSink interface {
	Log(ctx context.Context, entry models.AuditEntry) error
}

// AuditStore persists audit entries and lists them back.
type AuditStore interface {
	AuditSink
	StoreBatch(ctx context.Context, entries []models.AuditEntry) error
	Recent(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error)
	Health(ctx context.Context) error
}

// EventPublisher announces completed analyses.
type EventPublisher interface {
	PublishAnalysis(ctx context.Context, ev models.AnalysisEvent) error
	Close() error
}

// Notifier tells a user that an analysis finished.
type Notifier interface {
	NotifyAnalysis(ctx context.Context, who models.Identity, report *models.Report) error
}

type Metrics interface {
	RecordUpload(format string, bytes int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordSeries(outcome string, n int)
	RecordDropped(reason string, n int)
}
