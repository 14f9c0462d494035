package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"EduPulse/internal/domain/models"
	"EduPulse/internal/domain/service"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("edupulse.analytics")

// Config groups the settings of every pipeline stage.
type Config struct {
	MaxUploadBytes  int64
	Workers         int
	ExportPrecision int32
	ChartMaxPoints  int
	Cleaner         CleanerConfig
	Analyzer        AnalyzerConfig
	Forecaster      ForecasterConfig
}

// RunOptions selects the optional stages of one run.
type RunOptions struct {
	IncludeForecast       bool
	IncludeVisualizations bool
	// Category restricts the run to one series; it matches the key or "category_"+Category.
	Category string
}

// Pipeline chains ingestion, cleaning, analysis, forecasting, charts and assembly.
type Pipeline struct {
	ingestor   *Ingestor
	cleaner    *Cleaner
	analyzer   service.Analyzer
	forecaster service.Forecaster
	charts     service.ChartBuilder
	assembler  *Assembler
	workers    int
	onWarning  func(models.Warning)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithChartBuilder enables visualizations.
func WithChartBuilder(b service.ChartBuilder) PipelineOption {
	return func(p *Pipeline) { p.charts = b }
}

// WithAssembler replaces the default assembler.
func WithAssembler(a *Assembler) PipelineOption {
	return func(p *Pipeline) { p.assembler = a }
}

// WithWarningHook is called for every warning added during a run.
func WithWarningHook(fn func(models.Warning)) PipelineOption {
	return func(p *Pipeline) { p.onWarning = fn }
}

// NewPipeline builds every stage from cfg.
func NewPipeline(cfg Config, opts ...PipelineOption) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultCleanerConfig().Workers
	}
	cc := cfg.Cleaner
	if cc.Workers <= 0 {
		cc.Workers = workers
	}
	p := &Pipeline{
		ingestor:   NewIngestor(cfg.MaxUploadBytes),
		cleaner:    NewCleaner(cc),
		analyzer:   NewAnalyzer(cfg.Analyzer),
		forecaster: NewForecaster(cfg.Forecaster),
		assembler:  NewAssembler(WithExportPrecision(cfg.ExportPrecision)),
		workers:    workers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingestor exposes the ingestion stage so callers can check sizes before reading a body.
func (p *Pipeline) Ingestor() *Ingestor { return p.ingestor }

// Assembler exposes the assembler for exports.
func (p *Pipeline) Assembler() *Assembler { return p.assembler }

// CheckSize fails with ErrPayloadTooLarge when an upload of size bytes exceeds the limit.
func (p *Pipeline) CheckSize(size int64) error { return p.ingestor.CheckSize(size) }

// Export serializes r as an attachment in format.
func (p *Pipeline) Export(r *models.Report, format models.Format) (*models.ExportPayload, error) {
	return p.assembler.Export(r, format)
}

// Run processes one upload. It returns a domain *Error for input problems and ctx.Err()
// when the context ends first.
func (p *Pipeline) Run(ctx context.Context, raw []byte, hint models.FormatHint, opts RunOptions) (*models.Report, error) {
	ctx, span := tracer.Start(ctx, "analytics.pipeline")
	defer span.End()

	ds, err := p.ingest(ctx, raw, hint)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if opts.Category != "" {
		if ds, err = filterCategory(ds, opts.Category); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(
		attribute.String("analytics.format", string(ds.Format)),
		attribute.Int("analytics.series", len(ds.Series)),
	)

	cleaned, err := p.cleaner.CleanAll(ctx, ds)
	if err != nil {
		return nil, err
	}

	results, err := p.analyzeAll(ctx, cleaned, opts.IncludeForecast)
	if err != nil {
		return nil, err
	}

	var extra []models.Warning

	var charts map[string]models.Chart
	if opts.IncludeVisualizations && p.charts != nil {
		charts, err = p.buildCharts(ctx, cleaned, results)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			extra = append(extra, models.Warning{Code: models.WarnChartFailed, Message: err.Error()})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := p.assembler.Assemble(AssembleInput{
		Dataset: ds,
		Cleaned: cleaned,
		Results: results,
		Charts:  charts,
		Extra:   extra,
	})
	if p.onWarning != nil {
		for _, w := range report.Warnings {
			p.onWarning(w)
		}
	}
	return report, nil
}

func (p *Pipeline) ingest(ctx context.Context, raw []byte, hint models.FormatHint) (*models.Dataset, error) {
	_, span := tracer.Start(ctx, "analytics.ingest")
	defer span.End()
	span.SetAttributes(attribute.Int("analytics.bytes", len(raw)))
	ds, err := p.ingestor.Ingest(raw, hint)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return ds, nil
}

// analyzeAll runs the analyzer and, when asked, the forecaster for every usable series.
// A panicking series is marked failed in cleaned so the assembler omits it with a warning.
func (p *Pipeline) analyzeAll(ctx context.Context, cleaned map[string]CleanResult, withForecast bool) (map[string]models.AnalyticsResult, error) {
	ctx, span := tracer.Start(ctx, "analytics.analyze")
	defer span.End()

	keys := make([]string, 0, len(cleaned))
	for k, cr := range cleaned {
		if cr.Err == nil && cr.Series != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var (
		mu       sync.Mutex
		results  = make(map[string]models.AnalyticsResult, len(keys))
		failures = make(map[string]error)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, key := range keys {
		key, cs := key, cleaned[key].Series
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.analyzeOne(cs, withForecast)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[key] = err
				return nil
			}
			results[key] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	for key, err := range failures {
		cr := cleaned[key]
		cr.Err = err
		cleaned[key] = cr
	}
	span.SetAttributes(attribute.Int("analytics.analyzed", len(results)))
	return results, nil
}

func (p *Pipeline) analyzeOne(cs *models.CleanedSeries, withForecast bool) (res models.AnalyticsResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis of %q failed: %v", cs.Key, r)
		}
	}()
	res = p.analyzer.Analyze(cs)
	if withForecast {
		fc := p.forecaster.Forecast(cs)
		res.Forecast = &fc
	}
	return res, nil
}

func (p *Pipeline) buildCharts(ctx context.Context, cleaned map[string]CleanResult, results map[string]models.AnalyticsResult) (map[string]models.Chart, error) {
	ctx, span := tracer.Start(ctx, "analytics.visualize")
	defer span.End()
	usable := make(map[string]*models.CleanedSeries, len(results))
	for key := range results {
		usable[key] = cleaned[key].Series
	}
	charts, err := p.charts.Build(ctx, usable, results)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("visualize: %w", err)
	}
	return charts, nil
}

// filterCategory keeps only the series matching category.
func filterCategory(ds *models.Dataset, category string) (*models.Dataset, error) {
	for _, key := range []string{category, categoryPrefix + category} {
		if s, ok := ds.Series[key]; ok {
			return &models.Dataset{
				Format:  ds.Format,
				Series:  map[string]*models.Series{key: s},
				Details: ds.Details,
			}, nil
		}
	}
	return nil, SeriesNotFoundError(category)
}
