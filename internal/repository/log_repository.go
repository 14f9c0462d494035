package repository

import (
	"context"

	"EduPulse/internal/domain/models"
	domrepo "EduPulse/internal/domain/repository"
	applogger "EduPulse/pkg/logger"
)

// LogAuditSink writes audit entries to the structured log only.
type LogAuditSink struct {
	l *applogger.Logger
}

func NewLogAuditSink(l *applogger.Logger) *LogAuditSink {
	return &LogAuditSink{l: l.With(applogger.String("component", "audit"))}
}

var _ domrepo.AuditSink = (*LogAuditSink)(nil)

func (s *LogAuditSink) Log(_ context.Context, e models.AuditEntry) error {
	s.l.Info("audit",
		applogger.String("request_id", e.RequestID),
		applogger.String("action", e.Action),
		applogger.String("table", e.Table),
		applogger.String("user_id", e.UserID),
		applogger.String("ip_address", e.IPAddress),
	)
	return nil
}

// NoopPublisher drops events. Used when events are disabled.
type NoopPublisher struct{}

var _ domrepo.EventPublisher = NoopPublisher{}

func (NoopPublisher) PublishAnalysis(context.Context, models.AnalysisEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
