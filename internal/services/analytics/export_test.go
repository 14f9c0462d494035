package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"EduPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoSeriesCSV = `date,math,art
2024-01-01,10.5,3
2024-01-02,,4
2024-01-03,12.25,5
2024-01-04,13,6
2024-01-05,14.125,
`

func runReport(t *testing.T, raw string) (*Pipeline, *models.Report) {
	t.Helper()
	p := newTestPipeline()
	r, err := p.Run(context.Background(), []byte(raw), models.FormatHint{}, RunOptions{IncludeForecast: true})
	require.NoError(t, err)
	return p, r
}

// assertSameSeries checks that a re-ingested dataset carries the cleaned values of r.
func assertSameSeries(t *testing.T, r *models.Report, ds *models.Dataset) {
	t.Helper()
	require.ElementsMatch(t, keysOf(r.Series), keysOfSeries(ds.Series))
	for key, cs := range r.Cleaned {
		got := ds.Series[key]
		require.Len(t, got.Points, len(cs.Points), key)
		for i, p := range cs.Points {
			assert.True(t, p.Time.Equal(got.Points[i].Time), "%s[%d] time", key, i)
			assert.Equal(t, p.Present, got.Points[i].Present, "%s[%d] presence", key, i)
			if p.Present {
				assert.InDelta(t, p.Value, got.Points[i].Value, 1e-6, "%s[%d] value", key, i)
			}
		}
	}
}

func keysOf(m map[string]models.AnalyticsResult) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOfSeries(m map[string]*models.Series) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestExportCSVKeepsSubSecondTimestamps(t *testing.T) {
	raw := "timestamp,latency\n1700000000100,1\n1700000000200,2\n1700000000300,3\n"
	p, r := runReport(t, raw)
	require.Len(t, r.Cleaned["latency"].Points, 3)

	payload, err := p.Assembler().Export(r, models.FormatCSV)
	require.NoError(t, err)
	ds, err := p.Ingestor().Ingest(payload.Body, models.FormatHint{Filename: payload.Filename})
	require.NoError(t, err)
	assertSameSeries(t, r, ds)
}

func TestExportCSVReingests(t *testing.T) {
	p, r := runReport(t, twoSeriesCSV)

	payload, err := p.Assembler().Export(r, models.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "analysis_export_20240102_030405.csv", payload.Filename)
	assert.Equal(t, "text/csv", payload.ContentType)

	lines := strings.Split(strings.TrimSpace(string(payload.Body)), "\n")
	assert.Equal(t, strings.Join(exportColumns, ","), lines[0])
	assert.Len(t, lines, 1+5+5)

	ds, err := p.Ingestor().Ingest(payload.Body, models.FormatHint{Filename: payload.Filename})
	require.NoError(t, err)
	assert.Equal(t, "long", ds.Details["layout"])
	assertSameSeries(t, r, ds)
}

func TestExportJSONReingests(t *testing.T) {
	p, r := runReport(t, twoSeriesCSV)

	payload, err := p.Assembler().Export(r, models.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "analysis_export_20240102_030405.json", payload.Filename)
	assert.True(t, json.Valid(payload.Body))

	ds, err := p.Ingestor().Ingest(payload.Body, models.FormatHint{})
	require.NoError(t, err)
	assert.Equal(t, "series_wrapper", ds.Details["shape"])
	assertSameSeries(t, r, ds)
}

func TestExportMarksImputedRows(t *testing.T) {
	p, r := runReport(t, twoSeriesCSV)
	payload, err := p.Assembler().Export(r, models.FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(payload.Body), "math,2024-01-02,11.375,imputed,")
	assert.Contains(t, string(payload.Body), "art,2024-01-05,,missing,")
}

func TestExportUnsupportedFormat(t *testing.T) {
	p, r := runReport(t, twoSeriesCSV)
	_, err := p.Assembler().Export(r, models.Format("xlsx"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestAssembleForecastWarning(t *testing.T) {
	cs := mkCleaned("s", 1, 2, 3)
	r := fixedAssembler().Assemble(AssembleInput{
		Dataset: &models.Dataset{Format: models.FormatJSON},
		Cleaned: map[string]CleanResult{"s": {Series: cs}},
		Results: map[string]models.AnalyticsResult{
			"s": {Forecast: &models.Forecast{Error: "forecast failed: boom"}},
		},
	})
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, models.WarnForecastFailed, r.Warnings[0].Code)
	assert.Contains(t, r.Series, "s", "a failed forecast keeps the series")
	assert.Equal(t, models.FormatJSON, r.Format)
}

func TestQuick(t *testing.T) {
	_, r := runReport(t, monthlyCSV)
	q := Quick(r)
	require.Contains(t, q.Results, "value")
	got := q.Results["value"]
	assert.Equal(t, 121.0, *got.CurrentValue)
	assert.Equal(t, "21.00%", got.Growth.Total.String())
	assert.Equal(t, r.GeneratedAt, q.Timestamp)
}
