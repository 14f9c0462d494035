package models

import "time"

// Warning codes attached to a report.
const (
	WarnEmptySeries    = "EMPTY_SERIES"
	WarnForecastFailed = "FORECAST_FAILED"
	WarnChartFailed    = "CHART_FAILED"
)

// Warning describes a non-fatal problem with one series.
type Warning struct {
	Series  string `json:"series"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QualityMetrics totals the cleaning outcome over all series of an upload.
type QualityMetrics struct {
	SeriesTotal    int     `json:"series_total"`
	SeriesAnalyzed int     `json:"series_analyzed"`
	SeriesOmitted  int     `json:"series_omitted"`
	RowsTotal      int     `json:"rows_total"`
	RowsUsable     int     `json:"rows_usable"`
	Missing        int     `json:"missing"`
	Imputed        int     `json:"imputed"`
	OutOfRange     int     `json:"out_of_range"`
	Outliers       int     `json:"outliers"`
	Duplicates     int     `json:"duplicates"`
	InvalidDates   int     `json:"invalid_dates"`
	QualityScore   float64 `json:"quality_score"`
}

// SeriesQualityReport is the per-series quality summary.
type SeriesQualityReport struct {
	Records struct {
		Initial int `json:"initial"`
		Cleaned int `json:"cleaned"`
		Removed int `json:"removed"`
	} `json:"records"`
	Issues struct {
		MissingValues int `json:"missing_values"`
		Imputed       int `json:"imputed"`
		Duplicates    int `json:"duplicates"`
		Outliers      int `json:"outliers"`
		OutOfRange    int `json:"out_of_range"`
		InvalidDates  int `json:"invalid_dates"`
	} `json:"issues_handled"`
	QualityScore float64 `json:"quality_score"`
}

// NewSeriesQualityReport summarizes q.
func NewSeriesQualityReport(q SeriesQuality) SeriesQualityReport {
	var r SeriesQualityReport
	initial := q.Initial + q.InvalidDates + q.Duplicates
	r.Records.Initial = initial
	r.Records.Cleaned = q.Usable
	r.Records.Removed = initial - q.Usable
	r.Issues.MissingValues = q.Missing
	r.Issues.Imputed = q.Imputed
	r.Issues.Duplicates = q.Duplicates
	r.Issues.Outliers = q.Outliers
	r.Issues.OutOfRange = q.OutOfRange
	r.Issues.InvalidDates = q.InvalidDates
	r.QualityScore = q.Score()
	return r
}

// Report is the assembled analysis of one upload.
type Report struct {
	ID             string                         `json:"id"`
	GeneratedAt    time.Time                      `json:"generated_at"`
	Format         Format                         `json:"format"`
	Series         map[string]AnalyticsResult     `json:"series"`
	Quality        QualityMetrics                 `json:"quality"`
	SeriesQuality  map[string]SeriesQualityReport `json:"series_quality"`
	Warnings       []Warning                      `json:"warnings"`
	Visualizations map[string]Chart               `json:"visualizations,omitempty"`
	FormatDetails  map[string]string              `json:"format_details,omitempty"`

	// Cleaned keeps the cleaned input for export; never serialized directly.
	Cleaned map[string]*CleanedSeries `json:"-"`
}

// ExportPayload is a serialized report ready to be sent as an attachment.
type ExportPayload struct {
	Filename    string
	ContentType string
	Body        []byte
}

// QuickResult is the reduced per-series outcome of a quick analysis.
type QuickResult struct {
	Trend        Trend    `json:"trend"`
	Growth       Growth   `json:"growth"`
	CurrentValue *float64 `json:"current_value"`
}

// QuickReport is the reduced analysis of one upload.
type QuickReport struct {
	Timestamp time.Time              `json:"timestamp"`
	Results   map[string]QuickResult `json:"results"`
	Warnings  []Warning              `json:"warnings"`
}
