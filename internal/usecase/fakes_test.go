package usecase

import (
	"context"
	"errors"
	"sync"

	"EduPulse/internal/domain/models"
	"EduPulse/internal/services/analytics"
)

type fakeMetrics struct {
	mu      sync.Mutex
	uploads map[string]int
	errors  map[string]int
	series  map[string]int
	dropped map[string]int
	ops     map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		uploads: map[string]int{},
		errors:  map[string]int{},
		series:  map[string]int{},
		dropped: map[string]int{},
		ops:     map[string]int{},
	}
}

func (m *fakeMetrics) RecordUpload(format string, _ int) { m.inc(m.uploads, format, 1) }
func (m *fakeMetrics) RecordError(kind string) { m.inc(m.errors, kind, 1) }
func (m *fakeMetrics) RecordLatency(op string, _ float64) { m.inc(m.ops, op, 1) }
func (m *fakeMetrics) RecordSeries(outcome string, n int) { m.inc(m.series, outcome, n) }
func (m *fakeMetrics) RecordDropped(reason string, n int) { m.inc(m.dropped, reason, n) }

func (m *fakeMetrics) inc(into map[string]int, key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	into[key] += n
}

func (m *fakeMetrics) count(from map[string]int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return from[key]
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	err     error
	block   bool
}

func (a *fakeAudit) Log(ctx context.Context, e models.AuditEntry) error {
	if a.block {
		<-ctx.Done()
		return ctx.Err()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return a.err
}

func (a *fakeAudit) logged() []models.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.AuditEntry(nil), a.entries...)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.AnalysisEvent
}

func (p *fakeEvents) PublishAnalysis(_ context.Context, ev models.AnalysisEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakeEvents) Close() error { return nil }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *fakeNotifier) NotifyAnalysis(_ context.Context, who models.Identity, r *models.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, who.Email+":"+r.ID)
	return n.err
}

// blockingPipeline ignores its context and waits until released.
type blockingPipeline struct {
	release chan struct{}
}

func (p *blockingPipeline) CheckSize(int64) error { return nil }

func (p *blockingPipeline) Run(context.Context, []byte, models.FormatHint, analytics.RunOptions) (*models.Report, error) {
	<-p.release
	return &models.Report{ID: "late"}, nil
}

func (p *blockingPipeline) Export(*models.Report, models.Format) (*models.ExportPayload, error) {
	return nil, errors.New("not used")
}

type panicPipeline struct{ blockingPipeline }

func (panicPipeline) Run(context.Context, []byte, models.FormatHint, analytics.RunOptions) (*models.Report, error) {
	panic("boom")
}
