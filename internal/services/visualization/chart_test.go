package visualization

import (
	"context"
	"testing"
	"time"

	"EduPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleaned(key string, n int) *models.CleanedSeries {
	cs := &models.CleanedSeries{Key: key}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		cs.Points = append(cs.Points, models.Observation{Time: start.AddDate(0, 0, i), Value: float64(i), Present: true})
		cs.Flags = append(cs.Flags, 0)
	}
	return cs
}

func result(growth, strength float64) models.AnalyticsResult {
	slope, intercept := 1.0, 0.0
	return models.AnalyticsResult{
		Trend:  models.Trend{Direction: models.TrendIncreasing, Strength: &strength, Slope: &slope, Intercept: &intercept},
		Growth: models.Growth{Total: models.NewPercent(growth)},
	}
}

func TestTrendChart(t *testing.T) {
	res := result(0.5, 1)
	res.Forecast = &models.Forecast{
		Available: true,
		Predictions: []models.ForecastPoint{
			{Date: "2024-01-04", Value: 3, Lower: 2, Upper: 4},
		},
	}
	chart := NewBuilder(0).TrendChart(cleaned("category_math", 3), res)

	assert.Equal(t, "line", chart.Type)
	assert.Equal(t, "math trend", chart.Title)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"}, chart.Labels)
	require.Len(t, chart.Datasets, 5)

	actual := chart.Datasets[0]
	assert.Equal(t, "Actual", actual.Label)
	require.Len(t, actual.Data, 4)
	assert.Equal(t, 2.0, *actual.Data[2])
	assert.Nil(t, actual.Data[3])

	trend := chart.Datasets[1]
	assert.Equal(t, 1.0, *trend.Data[1])

	forecast := chart.Datasets[2]
	assert.Nil(t, forecast.Data[0])
	assert.Equal(t, 3.0, *forecast.Data[3])
	assert.Equal(t, 4.0, *chart.Datasets[3].Data[3])
	assert.Equal(t, 2.0, *chart.Datasets[4].Data[3])
}

func TestTrendChartWithoutForecast(t *testing.T) {
	chart := NewBuilder(0).TrendChart(cleaned("s", 3), result(0.1, 0.5))
	assert.Len(t, chart.Datasets, 2)
}

func TestTrendChartDownsamples(t *testing.T) {
	chart := NewBuilder(10).TrendChart(cleaned("s", 500), result(0.1, 0.5))
	assert.Len(t, chart.Labels, 10)
	assert.Equal(t, "2024-01-01", chart.Labels[0])
	assert.Equal(t, 499.0, *chart.Datasets[0].Data[9], "last point is kept")
}

func TestStrengthChartSortedByGrowth(t *testing.T) {
	chart := NewBuilder(0).StrengthChart(map[string]models.AnalyticsResult{
		"category_art":  result(0.1, 0.2),
		"category_math": result(0.5, 0.9),
		"science":       result(0.3, 0.4),
	})
	assert.Equal(t, "bar", chart.Type)
	assert.Equal(t, []string{"math", "science", "art"}, chart.Labels)
	require.Len(t, chart.Datasets, 2)
	assert.InDelta(t, 50.0, *chart.Datasets[0].Data[0], 1e-9)
	assert.InDelta(t, 90.0, *chart.Datasets[1].Data[0], 1e-9)
}

func TestBuild(t *testing.T) {
	b := NewBuilder(0)
	charts, err := b.Build(context.Background(),
		map[string]*models.CleanedSeries{"a": cleaned("a", 3), "b": cleaned("b", 3)},
		map[string]models.AnalyticsResult{"a": result(0.1, 0.5), "b": result(0.2, 0.6)},
	)
	require.NoError(t, err)
	assert.Len(t, charts, 3)
	assert.Contains(t, charts, "trend_a")
	assert.Contains(t, charts, "trend_b")
	assert.Contains(t, charts, "category_strength")

	single, err := b.Build(context.Background(),
		map[string]*models.CleanedSeries{"a": cleaned("a", 3)},
		map[string]models.AnalyticsResult{"a": result(0.1, 0.5)},
	)
	require.NoError(t, err)
	assert.Len(t, single, 1)
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(0).Build(ctx,
		map[string]*models.CleanedSeries{"a": cleaned("a", 3)},
		map[string]models.AnalyticsResult{"a": result(0.1, 0.5)},
	)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSampleIndices(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, sampleIndices(3, 5))
	idx := sampleIndices(1000, 100)
	assert.Len(t, idx, 100)
	assert.Equal(t, 0, idx[0])
	assert.Equal(t, 999, idx[len(idx)-1])
}
