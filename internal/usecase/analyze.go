package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"EduPulse/internal/domain/models"
	domrepo "EduPulse/internal/domain/repository"
	"EduPulse/internal/services/analytics"
	applogger "EduPulse/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("edupulse.usecase")

// Pipeline is the analytics pipeline as seen by the use case.
type Pipeline interface {
	CheckSize(size int64) error
	Run(ctx context.Context, raw []byte, hint models.FormatHint, opts analytics.RunOptions) (*models.Report, error)
	Export(r *models.Report, format models.Format) (*models.ExportPayload, error)
}

// Upload is one uploaded file plus who sent it.
type Upload struct {
	Raw       []byte
	Hint      models.FormatHint
	Identity  models.Identity
	RequestID string
	IPAddress string
}

// AnalyzeResult is the full report and, when requested, its export.
type AnalyzeResult struct {
	Report *models.Report
	Export *models.ExportPayload
}

// AnalyzeOption configures AnalyzeService.
type AnalyzeOption func(*AnalyzeService)

// WithProcessingTimeout bounds pipeline plus audit time per request.
func WithProcessingTimeout(d time.Duration) AnalyzeOption {
	return func(s *AnalyzeService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithAuditTimeout bounds a single audit write.
func WithAuditTimeout(d time.Duration) AnalyzeOption {
	return func(s *AnalyzeService) {
		if d > 0 {
			s.auditTimeout = d
		}
	}
}

// WithEventPublisher publishes an event after each successful analysis.
func WithEventPublisher(p domrepo.EventPublisher) AnalyzeOption {
	return func(s *AnalyzeService) {
		s.events = p
	}
}

// WithNotifier emails a summary to the caller after each full analysis.
func WithNotifier(n domrepo.Notifier, timeout time.Duration) AnalyzeOption {
	return func(s *AnalyzeService) {
		s.notifier = n
		if timeout > 0 {
			s.notifyTimeout = timeout
		}
	}
}

// AnalyzeService runs the pipeline under a deadline and handles the side effects
// of an analysis: audit, metrics, completion events and notification.
type AnalyzeService struct {
	pipeline      Pipeline
	metrics       domrepo.Metrics
	audit         domrepo.AuditSink
	events        domrepo.EventPublisher
	notifier      domrepo.Notifier
	l             *applogger.Logger
	timeout       time.Duration
	auditTimeout  time.Duration
	notifyTimeout time.Duration
	now           func() time.Time

	bg sync.WaitGroup
}

func NewAnalyzeService(p Pipeline, metrics domrepo.Metrics, audit domrepo.AuditSink, l *applogger.Logger, opts ...AnalyzeOption) *AnalyzeService {
	s := &AnalyzeService{
		pipeline:      p,
		metrics:       metrics,
		audit:         audit,
		l:             l.With(applogger.String("component", "analyze")),
		timeout:       30 * time.Second,
		auditTimeout:  2 * time.Second,
		notifyTimeout: 10 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs the full pipeline and exports the report when req.ExportFormat is set.
func (s *AnalyzeService) Analyze(ctx context.Context, in Upload, req models.AnalyzeRequest) (*AnalyzeResult, error) {
	ctx, span := tracer.Start(ctx, "usecase.analyze")
	defer span.End()

	in.Hint.Declared = models.ParseFormat(req.Format)
	start := s.now()
	report, err := s.process(ctx, in, models.ActionAnalyzeData, analytics.RunOptions{
		IncludeForecast:       req.IncludeForecast,
		IncludeVisualizations: req.IncludeVisualizations,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := &AnalyzeResult{Report: report}
	if req.ExportFormat != "" {
		payload, err := s.pipeline.Export(report, models.ParseFormat(req.ExportFormat))
		if err != nil {
			s.metrics.RecordError(analytics.Kind(err))
			return nil, fmt.Errorf("export: %w", err)
		}
		out.Export = payload
		span.SetAttributes(attribute.String("analytics.export", payload.Filename))
	}

	s.afterAnalysis(ctx, in, report, s.now().Sub(start))
	return out, nil
}

// QuickAnalyze runs the pipeline without forecast or charts, optionally on one category.
func (s *AnalyzeService) QuickAnalyze(ctx context.Context, in Upload, req models.QuickAnalysisRequest) (*models.QuickReport, error) {
	ctx, span := tracer.Start(ctx, "usecase.quick_analyze")
	defer span.End()

	in.Hint.Declared = models.ParseFormat(req.Format)
	report, err := s.process(ctx, in, models.ActionQuickAnalysis, analytics.RunOptions{Category: req.Category})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return analytics.Quick(report), nil
}

// Wait blocks until background notifications and events finish or ctx ends.
func (s *AnalyzeService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AnalyzeService) process(ctx context.Context, in Upload, action string, opts analytics.RunOptions) (*models.Report, error) {
	start := s.now()
	op := "analyze"
	if action == models.ActionQuickAnalysis {
		op = "quick_analysis"
	}

	if err := s.pipeline.CheckSize(int64(len(in.Raw))); err != nil {
		s.fail(in, err)
		return nil, err
	}

	report, err := s.runWithTimeout(ctx, in, action, opts)
	if err != nil {
		s.fail(in, err)
		return nil, err
	}

	s.metrics.RecordUpload(string(report.Format), len(in.Raw))
	s.metrics.RecordLatency(op, s.now().Sub(start).Seconds())
	s.metrics.RecordSeries("analyzed", len(report.Series))
	s.metrics.RecordSeries("omitted", report.Quality.SeriesOmitted)
	s.metrics.RecordDropped("out_of_range", report.Quality.OutOfRange)
	s.metrics.RecordDropped("duplicate", report.Quality.Duplicates)
	s.metrics.RecordDropped("invalid_date", report.Quality.InvalidDates)
	return report, nil
}

type runResult struct {
	report *models.Report
	err    error
}

// runWithTimeout runs the pipeline and the audit write in their own goroutine.
// When the deadline passes first the late result is discarded.
func (s *AnalyzeService) runWithTimeout(ctx context.Context, in Upload, action string, opts analytics.RunOptions) (*models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan runResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- runResult{err: fmt.Errorf("pipeline panic: %v", rec)}
			}
		}()
		report, err := s.pipeline.Run(ctx, in.Raw, in.Hint, opts)
		if err == nil {
			s.writeAudit(ctx, in, action)
		}
		done <- runResult{report: report, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, s.deadlineError(ctx)
	case res := <-done:
		if ctx.Err() != nil {
			return nil, s.deadlineError(ctx)
		}
		return res.report, res.err
	}
}

func (s *AnalyzeService) deadlineError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return analytics.TimeoutError(s.timeout.String())
	}
	return ctx.Err()
}

func (s *AnalyzeService) writeAudit(ctx context.Context, in Upload, action string) {
	if s.audit == nil {
		return
	}
	actx, cancel := context.WithTimeout(ctx, s.auditTimeout)
	defer cancel()

	err := s.audit.Log(actx, models.AuditEntry{
		RequestID: in.RequestID,
		Action:    action,
		Table:     models.AuditTableAnalytics,
		UserID:    in.Identity.UserID,
		IPAddress: in.IPAddress,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		s.metrics.RecordError("audit")
		s.l.Warn("audit log failed",
			applogger.String("request_id", in.RequestID),
			applogger.String("action", action),
			applogger.Error(err),
		)
	}
}

func (s *AnalyzeService) fail(in Upload, err error) {
	kind := analytics.Kind(err)
	s.metrics.RecordError(kind)
	if kind == "internal" {
		s.l.Error("analysis failed", applogger.String("request_id", in.RequestID), applogger.Error(err))
		return
	}
	s.l.Info("analysis rejected",
		applogger.String("request_id", in.RequestID),
		applogger.String("kind", kind),
		applogger.Error(err),
	)
}

// afterAnalysis publishes the completion event and notifies the caller in the background.
func (s *AnalyzeService) afterAnalysis(ctx context.Context, in Upload, report *models.Report, took time.Duration) {
	bgCtx := context.WithoutCancel(ctx)

	if s.events != nil {
		ev := models.AnalysisEvent{
			ReportID:     report.ID,
			RequestID:    in.RequestID,
			UserID:       in.Identity.UserID,
			Format:       report.Format,
			SeriesCount:  len(report.Series),
			OmittedCount: report.Quality.SeriesOmitted,
			QualityScore: report.Quality.QualityScore,
			DurationMs:   took.Milliseconds(),
			CreatedAt:    s.now().UTC(),
		}
		s.goBackground(bgCtx, s.auditTimeout, "publish analysis event", in.RequestID, func(ctx context.Context) error {
			return s.events.PublishAnalysis(ctx, ev)
		})
	}

	if s.notifier != nil && in.Identity.Email != "" {
		who := in.Identity
		s.goBackground(bgCtx, s.notifyTimeout, "notify analysis", in.RequestID, func(ctx context.Context) error {
			return s.notifier.NotifyAnalysis(ctx, who, report)
		})
	}
}

func (s *AnalyzeService) goBackground(ctx context.Context, timeout time.Duration, what, requestID string, fn func(context.Context) error) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.metrics.RecordError("side_effect")
			s.l.Warn(what+" failed", applogger.String("request_id", requestID), applogger.Error(err))
		}
	}()
}
