package analytics

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"EduPulse/internal/domain/models"
	"EduPulse/pkg/util"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var exportColumns = []string{
	"series", "date", "value", "flags",
	"trend_direction", "trend_strength", "trend_significant",
	"growth_total", "growth_recent",
	"last_value", "mean", "std",
	"forecast_available", "mae", "rmse", "std_error",
}

// Export serializes r to CSV or JSON. Both forms re-ingest to the same series keys and values.
func (a *Assembler) Export(r *models.Report, format models.Format) (*models.ExportPayload, error) {
	filename := "analysis_export_" + util.ExportStamp(r.GeneratedAt)
	switch format {
	case models.FormatCSV:
		body, err := a.exportCSV(r)
		if err != nil {
			return nil, fmt.Errorf("export csv: %w", err)
		}
		return &models.ExportPayload{Filename: filename + ".csv", ContentType: "text/csv", Body: body}, nil
	case models.FormatJSON:
		body, err := a.exportJSON(r)
		if err != nil {
			return nil, fmt.Errorf("export json: %w", err)
		}
		return &models.ExportPayload{Filename: filename + ".json", ContentType: "application/json", Body: body}, nil
	default:
		return nil, newError(ErrUnsupportedFormat, "export format %q", format).WithDetail("export_format", string(format))
	}
}

func (a *Assembler) exportCSV(r *models.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportColumns); err != nil {
		return nil, err
	}

	keys := lo.Keys(r.Series)
	sort.Strings(keys)
	for _, key := range keys {
		res := r.Series[key]
		tail := a.analysisColumns(res)
		cs := r.Cleaned[key]
		if cs == nil {
			continue
		}
		for i, p := range cs.Points {
			row := make([]string, 0, len(exportColumns))
			value := ""
			if p.Present {
				value = a.number(p.Value)
			}
			row = append(row, key, util.FormatDate(p.Time), value, cs.Flags[i].String())
			row = append(row, tail...)
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *Assembler) analysisColumns(res models.AnalyticsResult) []string {
	cols := []string{
		res.Trend.Direction.String(),
		a.optNumber(res.Trend.Strength),
		strconv.FormatBool(res.Trend.Significant),
		optPercent(res.Growth.Total),
		optPercent(res.Growth.Recent),
		a.optNumber(res.CurrentStats.LastValue),
		a.optNumber(res.CurrentStats.Mean),
		a.optNumber(res.CurrentStats.Std),
	}
	if res.Forecast == nil {
		return append(cols, "", "", "", "")
	}
	cols = append(cols, strconv.FormatBool(res.Forecast.Available))
	if m := res.Forecast.Metrics; m != nil {
		return append(cols, a.number(m.MAE), a.number(m.RMSE), a.number(m.StdError))
	}
	return append(cols, "", "", "")
}

type exportRecord struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
	Flags string   `json:"flags,omitempty"`
}

type exportSeries struct {
	Data     []exportRecord             `json:"data"`
	Analysis models.AnalyticsResult     `json:"analysis"`
	Quality  models.SeriesQualityReport `json:"quality"`
}

type exportDocument struct {
	ID          string                  `json:"id"`
	GeneratedAt string                  `json:"generated_at"`
	Format      models.Format           `json:"format"`
	Quality     models.QualityMetrics   `json:"quality"`
	Warnings    []models.Warning        `json:"warnings"`
	Series      map[string]exportSeries `json:"series"`
}

func (a *Assembler) exportJSON(r *models.Report) ([]byte, error) {
	doc := exportDocument{
		ID:          r.ID,
		GeneratedAt: r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Format:      r.Format,
		Quality:     r.Quality,
		Warnings:    r.Warnings,
		Series:      make(map[string]exportSeries, len(r.Series)),
	}
	for key, res := range r.Series {
		es := exportSeries{Analysis: res, Quality: r.SeriesQuality[key]}
		if cs := r.Cleaned[key]; cs != nil {
			es.Data = make([]exportRecord, len(cs.Points))
			for i, p := range cs.Points {
				rec := exportRecord{Date: util.FormatDate(p.Time), Flags: cs.Flags[i].String()}
				if p.Present {
					v := a.round(p.Value)
					rec.Value = &v
				}
				es.Data[i] = rec
			}
		}
		doc.Series[key] = es
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (a *Assembler) round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(a.precision).Float64()
	return f
}

func (a *Assembler) number(v float64) string {
	return decimal.NewFromFloat(v).Round(a.precision).String()
}

func (a *Assembler) optNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return a.number(*v)
}

func optPercent(p *models.Percent) string {
	if p == nil {
		return ""
	}
	return p.String()
}
