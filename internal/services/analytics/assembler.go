package analytics

import (
	"sort"
	"time"

	"EduPulse/internal/domain/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// WithIDGenerator overrides the report id source.
func WithIDGenerator(newID func() string) AssemblerOption {
	return func(a *Assembler) { a.newID = newID }
}

// WithExportPrecision sets the decimal places written to exports.
func WithExportPrecision(places int32) AssemblerOption {
	return func(a *Assembler) {
		if places > 0 {
			a.precision = places
		}
	}
}

// Assembler merges per-series outcomes into a Report and serializes exports.
type Assembler struct {
	now       func() time.Time
	newID     func() string
	precision int32
}

// NewAssembler creates an Assembler.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		now:       time.Now,
		newID:     uuid.NewString,
		precision: 6,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AssembleInput is everything the assembler needs for one upload.
type AssembleInput struct {
	Dataset *models.Dataset
	Cleaned map[string]CleanResult
	Results map[string]models.AnalyticsResult
	Charts  map[string]models.Chart
	Extra   []models.Warning
}

// Assemble builds the report. A series is either fully present or omitted with a warning.
func (a *Assembler) Assemble(in AssembleInput) *models.Report {
	r := &models.Report{
		ID:             a.newID(),
		GeneratedAt:    a.now().UTC(),
		Series:         make(map[string]models.AnalyticsResult, len(in.Results)),
		SeriesQuality:  make(map[string]models.SeriesQualityReport, len(in.Cleaned)),
		Warnings:       make([]models.Warning, 0),
		Visualizations: in.Charts,
		Cleaned:        make(map[string]*models.CleanedSeries, len(in.Results)),
	}
	if in.Dataset != nil {
		r.Format = in.Dataset.Format
		r.FormatDetails = in.Dataset.Details
	}

	keys := lo.Keys(in.Cleaned)
	sort.Strings(keys)

	var rowsTotal int
	q := &r.Quality
	q.SeriesTotal = len(keys)
	for _, key := range keys {
		cr := in.Cleaned[key]
		if cr.Series != nil {
			sq := cr.Series.Quality
			report := models.NewSeriesQualityReport(sq)
			r.SeriesQuality[key] = report
			rowsTotal += report.Records.Initial
			q.RowsUsable += sq.Usable
			q.Missing += sq.Missing
			q.Imputed += sq.Imputed
			q.OutOfRange += sq.OutOfRange
			q.Outliers += sq.Outliers
			q.Duplicates += sq.Duplicates
			q.InvalidDates += sq.InvalidDates
		}

		res, ok := in.Results[key]
		if cr.Err != nil || !ok {
			q.SeriesOmitted++
			msg := "series has no usable values"
			if cr.Err != nil {
				msg = cr.Err.Error()
			}
			r.Warnings = append(r.Warnings, models.Warning{Series: key, Code: models.WarnEmptySeries, Message: msg})
			continue
		}

		q.SeriesAnalyzed++
		r.Series[key] = res
		r.Cleaned[key] = cr.Series
		if res.Forecast != nil && res.Forecast.Error != "" {
			r.Warnings = append(r.Warnings, models.Warning{Series: key, Code: models.WarnForecastFailed, Message: res.Forecast.Error})
		}
	}
	q.RowsTotal = rowsTotal
	if rowsTotal > 0 {
		q.QualityScore = models.SeriesQuality{Initial: rowsTotal, Usable: q.RowsUsable}.Score()
	}

	r.Warnings = append(r.Warnings, in.Extra...)
	sort.SliceStable(r.Warnings, func(i, j int) bool { return r.Warnings[i].Series < r.Warnings[j].Series })
	return r
}

// Quick reduces a report to trend, growth and current value per series.
func Quick(r *models.Report) *models.QuickReport {
	out := &models.QuickReport{
		Timestamp: r.GeneratedAt,
		Results:   make(map[string]models.QuickResult, len(r.Series)),
		Warnings:  r.Warnings,
	}
	for key, res := range r.Series {
		out.Results[key] = models.QuickResult{
			Trend:        res.Trend,
			Growth:       res.Growth,
			CurrentValue: res.CurrentStats.LastValue,
		}
	}
	return out
}
