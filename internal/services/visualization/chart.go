package visualization

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"EduPulse/internal/domain/models"
	"EduPulse/internal/domain/service"
	"EduPulse/pkg/util"

	"github.com/samber/lo"
)

const (
	colorActual   = "#4E79A7"
	colorForecast = "#F28E2B"
	colorBounds   = "#E5E7EB"
	colorTrend    = "#59A14F"

	defaultMaxPoints = 100
)

// Builder renders chart configurations for analyzed series.
type Builder struct {
	maxPoints int
}

// NewBuilder creates a Builder that draws at most maxPoints points per chart.
func NewBuilder(maxPoints int) *Builder {
	if maxPoints < 2 {
		maxPoints = defaultMaxPoints
	}
	return &Builder{maxPoints: maxPoints}
}

// Build returns one trend chart per series plus a category strength chart.
func (b *Builder) Build(ctx context.Context, cleaned map[string]*models.CleanedSeries, results map[string]models.AnalyticsResult) (map[string]models.Chart, error) {
	charts := make(map[string]models.Chart, len(results)+1)
	keys := lo.Keys(results)
	sort.Strings(keys)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cs, ok := cleaned[key]
		if !ok {
			continue
		}
		charts["trend_"+key] = b.TrendChart(cs, results[key])
	}
	if len(results) > 1 {
		charts["category_strength"] = b.StrengthChart(results)
	}
	return charts, nil
}

// TrendChart plots actual values, the fitted trend and, when present, the forecast with bounds.
func (b *Builder) TrendChart(cs *models.CleanedSeries, res models.AnalyticsResult) models.Chart {
	n := len(cs.Points)
	var preds []models.ForecastPoint
	if res.Forecast != nil && res.Forecast.Available {
		preds = res.Forecast.Predictions
	}
	total := n + len(preds)

	labels := make([]string, 0, total)
	actual := make([]*float64, total)
	trend := make([]*float64, total)
	forecast := make([]*float64, total)
	upper := make([]*float64, total)
	lower := make([]*float64, total)

	idx := 0
	for i, p := range cs.Points {
		labels = append(labels, util.FormatDate(p.Time))
		if !p.Present {
			continue
		}
		actual[i] = models.Float(p.Value)
		if res.Trend.Slope != nil && res.Trend.Intercept != nil {
			trend[i] = models.Float(*res.Trend.Intercept + *res.Trend.Slope*float64(idx))
		}
		idx++
	}
	for j, p := range preds {
		labels = append(labels, p.Date)
		forecast[n+j] = models.Float(p.Value)
		upper[n+j] = models.Float(p.Upper)
		lower[n+j] = models.Float(p.Lower)
	}

	keep := sampleIndices(total, b.maxPoints)
	chart := models.Chart{
		Type:   "line",
		Title:  fmt.Sprintf("%s trend", displayName(cs.Key)),
		Labels: pick(labels, keep),
		Datasets: []models.ChartDataset{
			{Label: "Actual", Data: pick(actual, keep), Color: colorActual},
			{Label: "Trend", Data: pick(trend, keep), Color: colorTrend, Dash: true},
		},
	}
	if len(preds) > 0 {
		chart.Datasets = append(chart.Datasets,
			models.ChartDataset{Label: "Forecast", Data: pick(forecast, keep), Color: colorForecast, Dash: true},
			models.ChartDataset{Label: "Upper bound", Data: pick(upper, keep), Color: colorBounds},
			models.ChartDataset{Label: "Lower bound", Data: pick(lower, keep), Color: colorBounds},
		)
	}
	return chart
}

// StrengthChart compares total growth and trend strength across series, sorted by growth.
func (b *Builder) StrengthChart(results map[string]models.AnalyticsResult) models.Chart {
	type row struct {
		key      string
		growth   float64
		strength float64
	}
	rows := make([]row, 0, len(results))
	for key, res := range results {
		r := row{key: key}
		if res.Growth.Total != nil {
			r.growth = float64(*res.Growth.Total) * 100
		}
		if res.Trend.Strength != nil {
			r.strength = *res.Trend.Strength * 100
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].growth != rows[j].growth {
			return rows[i].growth > rows[j].growth
		}
		return rows[i].key < rows[j].key
	})

	chart := models.Chart{
		Type:  "bar",
		Title: "Growth and trend strength by series",
		Datasets: []models.ChartDataset{
			{Label: "Growth Rate (%)", Color: colorActual},
			{Label: "Trend Strength (%)", Color: colorTrend},
		},
	}
	for _, r := range rows {
		chart.Labels = append(chart.Labels, displayName(r.key))
		chart.Datasets[0].Data = append(chart.Datasets[0].Data, models.Float(r.growth))
		chart.Datasets[1].Data = append(chart.Datasets[1].Data, models.Float(r.strength))
	}
	return chart
}

// sampleIndices picks at most limit evenly spaced indices of [0, n), always keeping the last one.
func sampleIndices(n, limit int) []int {
	if n <= limit {
		return lo.Range(n)
	}
	out := make([]int, 0, limit)
	step := float64(n-1) / float64(limit-1)
	for i := 0; i < limit; i++ {
		out = append(out, int(float64(i)*step+0.5))
	}
	out[len(out)-1] = n - 1
	return lo.Uniq(out)
}

func pick[T any](src []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}

func displayName(key string) string {
	return strings.TrimPrefix(key, "category_")
}

var _ service.ChartBuilder = (*Builder)(nil)
