package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"EduPulse/internal/domain/models"
	"EduPulse/internal/services/analytics"
	applogger "EduPulse/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const monthlyCSV = "date,value\n2024-01-01,100\n2024-02-01,110\n2024-03-01,121\n"

func upload(raw string) Upload {
	return Upload{
		Raw:       []byte(raw),
		Hint:      models.FormatHint{Filename: "scores.csv"},
		Identity:  models.Identity{UserID: "u1", Email: "u1@example.com"},
		RequestID: "req-1",
		IPAddress: "10.0.0.1",
	}
}

type harness struct {
	svc      *AnalyzeService
	metrics  *fakeMetrics
	audit    *fakeAudit
	events   *fakeEvents
	notifier *fakeNotifier
}

func newHarness(p Pipeline, opts ...AnalyzeOption) *harness {
	h := &harness{
		metrics:  newFakeMetrics(),
		audit:    &fakeAudit{},
		events:   &fakeEvents{},
		notifier: &fakeNotifier{},
	}
	opts = append([]AnalyzeOption{
		WithEventPublisher(h.events),
		WithNotifier(h.notifier, time.Second),
	}, opts...)
	h.svc = NewAnalyzeService(p, h.metrics, h.audit, applogger.Nop(), opts...)
	return h
}

func realPipeline(maxBytes int64) *analytics.Pipeline {
	return analytics.NewPipeline(analytics.Config{MaxUploadBytes: maxBytes})
}

func TestAnalyzeEndToEnd(t *testing.T) {
	h := newHarness(realPipeline(0))

	out, err := h.svc.Analyze(context.Background(), upload(monthlyCSV), models.AnalyzeRequest{IncludeForecast: true})
	require.NoError(t, err)
	require.NoError(t, h.svc.Wait(context.Background()))

	res := out.Report.Series["value"]
	assert.Equal(t, "21.00%", res.Growth.Total.String())
	assert.Equal(t, models.TrendIncreasing, res.Trend.Direction)
	require.NotNil(t, res.Forecast)
	assert.False(t, res.Forecast.Available)
	assert.Nil(t, out.Export)

	entries := h.audit.logged()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionAnalyzeData, entries[0].Action)
	assert.Equal(t, models.AuditTableAnalytics, entries[0].Table)
	assert.Equal(t, "u1", entries[0].UserID)
	assert.Equal(t, "10.0.0.1", entries[0].IPAddress)

	assert.Equal(t, 1, h.metrics.count(h.metrics.uploads, "csv"))
	assert.Equal(t, 1, h.metrics.count(h.metrics.series, "analyzed"))
	assert.Equal(t, 1, h.metrics.count(h.metrics.ops, "analyze"))

	require.Len(t, h.events.events, 1)
	assert.Equal(t, out.Report.ID, h.events.events[0].ReportID)
	assert.Equal(t, "req-1", h.events.events[0].RequestID)
	assert.Equal(t, []string{"u1@example.com:" + out.Report.ID}, h.notifier.sent)
}

func TestAnalyzeWithExport(t *testing.T) {
	h := newHarness(realPipeline(0))
	out, err := h.svc.Analyze(context.Background(), upload(monthlyCSV), models.AnalyzeRequest{ExportFormat: "csv"})
	require.NoError(t, err)
	require.NotNil(t, out.Export)
	assert.Equal(t, "text/csv", out.Export.ContentType)
	assert.True(t, strings.HasPrefix(out.Export.Filename, "analysis_export_"))
	assert.True(t, strings.HasSuffix(out.Export.Filename, ".csv"))
}

func TestAnalyzeOversizeHasNoResult(t *testing.T) {
	h := newHarness(realPipeline(16))

	out, err := h.svc.Analyze(context.Background(), upload(monthlyCSV), models.AnalyzeRequest{})
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, analytics.ErrPayloadTooLarge))
	assert.Empty(t, h.audit.logged(), "rejected uploads are not audited")
	assert.Equal(t, 1, h.metrics.count(h.metrics.errors, "payload_too_large"))
}

func TestAnalyzeMalformed(t *testing.T) {
	h := newHarness(realPipeline(0))
	_, err := h.svc.Analyze(context.Background(), upload("value\n1\n"), models.AnalyzeRequest{})
	assert.True(t, errors.Is(err, analytics.ErrMalformedInput))
	assert.Equal(t, 1, h.metrics.count(h.metrics.errors, "malformed_input"))
	assert.Empty(t, h.events.events)
}

func TestAnalyzeTimeoutWins(t *testing.T) {
	p := &blockingPipeline{release: make(chan struct{})}
	defer close(p.release)
	h := newHarness(p, WithProcessingTimeout(20*time.Millisecond))

	start := time.Now()
	out, err := h.svc.Analyze(context.Background(), upload(monthlyCSV), models.AnalyzeRequest{})
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, analytics.ErrProcessingTimeout))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, h.metrics.count(h.metrics.errors, "processing_timeout"))
}

func TestAnalyzeBlockingAuditCountsTowardsDeadline(t *testing.T) {
	h := newHarness(realPipeline(0),
		WithProcessingTimeout(30*time.Millisecond),
		WithAuditTimeout(time.Minute),
	)
	h.audit.block = true

	_, err := h.svc.Analyze(context.Background(), upload(monthlyCSV), models.AnalyzeRequest{})
	assert.True(t, errors.Is(err, analytics.ErrProcessingTimeout))
}

func TestAnalyzeAuditFailureDoesNotFailRequest(t *testing.T) {
	h := newHarness(realPipeline(0))
	h.audit.err = errors.New("clickhouse down")

	_, err := h.svc.Analyze(context.Background(), upload(monthlyCSV), models.AnalyzeRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, h.metrics.count(h.metrics.errors, "audit"))
}

func TestAnalyzeNotifierFailureIsLogged(t *testing.T) {
	h := newHarness(realPipeline(0))
	h.notifier.err = errors.New("smtp down")

	_, err := h.svc.Analyze(context.Background(), upload(monthlyCSV), models.AnalyzeRequest{})
	require.NoError(t, err)
	require.NoError(t, h.svc.Wait(context.Background()))
	assert.Equal(t, 1, h.metrics.count(h.metrics.errors, "side_effect"))
}

func TestAnalyzeCallerCancelled(t *testing.T) {
	p := &blockingPipeline{release: make(chan struct{})}
	defer close(p.release)
	h := newHarness(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.svc.Analyze(ctx, upload(monthlyCSV), models.AnalyzeRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeRecoversPipelinePanic(t *testing.T) {
	h := newHarness(&panicPipeline{})
	_, err := h.svc.Analyze(context.Background(), upload(monthlyCSV), models.AnalyzeRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline panic")
	assert.Equal(t, 1, h.metrics.count(h.metrics.errors, "internal"))
}

func TestQuickAnalyze(t *testing.T) {
	h := newHarness(realPipeline(0))
	csv := "date,category,value\n2024-01-01,math,10\n2024-01-02,math,12\n2024-01-01,art,5\n2024-01-02,art,4\n"

	q, err := h.svc.QuickAnalyze(context.Background(), upload(csv), models.QuickAnalysisRequest{Category: "math"})
	require.NoError(t, err)
	require.Len(t, q.Results, 1)
	assert.Contains(t, q.Results, "category_math")
	assert.Equal(t, 12.0, *q.Results["category_math"].CurrentValue)

	entries := h.audit.logged()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionQuickAnalysis, entries[0].Action)
	require.NoError(t, h.svc.Wait(context.Background()))
	assert.Empty(t, h.events.events, "quick analysis publishes no event")
}

func TestQuickAnalyzeUnknownCategory(t *testing.T) {
	h := newHarness(realPipeline(0))
	_, err := h.svc.QuickAnalyze(context.Background(), upload(monthlyCSV), models.QuickAnalysisRequest{Category: "history"})
	assert.True(t, errors.Is(err, analytics.ErrSeriesNotFound))
}
