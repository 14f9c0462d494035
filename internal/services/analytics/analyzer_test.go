package analytics

import (
	"math"
	"testing"

	"EduPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeIncreasing(t *testing.T) {
	res := NewAnalyzer(AnalyzerConfig{}).Analyze(mkCleaned("s", 10, 12, 14, 16))

	assert.Equal(t, models.TrendIncreasing, res.Trend.Direction)
	require.NotNil(t, res.Trend.Strength)
	assert.InDelta(t, 1.0, *res.Trend.Strength, 1e-12)
	assert.True(t, res.Trend.Significant)
	require.NotNil(t, res.Growth.Total)
	assert.Equal(t, "60.00%", res.Growth.Total.String())
	assert.Nil(t, res.Growth.Recent, "fewer points than the recent window")
	assert.Equal(t, 16.0, *res.CurrentStats.LastValue)
	assert.Equal(t, 13.0, *res.CurrentStats.Mean)
	assert.Equal(t, 4, res.Summary.Count)
	assert.Equal(t, 13.0, *res.Summary.Median)
}

func TestAnalyzeDecreasing(t *testing.T) {
	res := NewAnalyzer(AnalyzerConfig{}).Analyze(mkCleaned("s", 16, 14, 12, 10))
	assert.Equal(t, models.TrendDecreasing, res.Trend.Direction)
	assert.Equal(t, "-37.50%", res.Growth.Total.String())
}

func TestAnalyzeStable(t *testing.T) {
	res := NewAnalyzer(AnalyzerConfig{}).Analyze(mkCleaned("s", 100, 100.1, 100, 100.1, 100))
	assert.Equal(t, models.TrendStable, res.Trend.Direction)
	assert.False(t, res.Trend.Significant)

	res = NewAnalyzer(AnalyzerConfig{}).Analyze(mkCleaned("s", 5, 5, 5, 5))
	assert.Equal(t, models.TrendStable, res.Trend.Direction)
	assert.Nil(t, res.Trend.Strength, "no variance to explain")
	assert.Equal(t, 0.0, *res.CurrentStats.Std)
}

func TestAnalyzeNoisyTrendNotSignificant(t *testing.T) {
	res := NewAnalyzer(AnalyzerConfig{}).Analyze(mkCleaned("s", 1, 10, 2, 9, 3, 8))
	assert.Equal(t, models.TrendIncreasing, res.Trend.Direction)
	assert.False(t, res.Trend.Significant)
}

func TestAnalyzeShortSeries(t *testing.T) {
	a := NewAnalyzer(AnalyzerConfig{})

	empty := a.Analyze(mkCleaned("s"))
	assert.Equal(t, models.TrendUnknown, empty.Trend.Direction)
	assert.Nil(t, empty.Growth.Total)
	assert.Nil(t, empty.Growth.Recent)
	assert.Nil(t, empty.CurrentStats.LastValue)
	assert.Nil(t, empty.CurrentStats.Mean)
	assert.Nil(t, empty.CurrentStats.Std)

	one := a.Analyze(mkCleaned("s", 5))
	assert.Equal(t, models.TrendUnknown, one.Trend.Direction)
	assert.Nil(t, one.Growth.Total)
	assert.Nil(t, one.Growth.Recent)
	assert.Nil(t, one.CurrentStats.Std)
	assert.Equal(t, 5.0, *one.CurrentStats.Mean)
}

func TestAnalyzeGrowth(t *testing.T) {
	a := NewAnalyzer(AnalyzerConfig{RecentWindow: 3})
	res := a.Analyze(mkCleaned("s", 100, 110, 121, 133.1))
	require.NotNil(t, res.Growth.Total)
	require.NotNil(t, res.Growth.Recent)
	assert.Equal(t, "33.10%", res.Growth.Total.String())
	assert.Equal(t, "21.00%", res.Growth.Recent.String())

	zero := a.Analyze(mkCleaned("s", 0, 1, 2))
	assert.Nil(t, zero.Growth.Total, "growth from zero is undefined")
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := NewAnalyzer(AnalyzerConfig{})
	cs := mkCleaned("s", 3, 1, 4, 1, 5, 9, 2, 6)
	assert.Equal(t, a.Analyze(cs), a.Analyze(cs))
}

func TestAnalyzeValuesNearFloatLimit(t *testing.T) {
	cs, err := NewCleaner(CleanerConfig{}).Clean(mkSeries("s", 9e307, 9e307, 9e307))
	require.NoError(t, err)
	require.Equal(t, 3, cs.Quality.Usable)

	res := NewAnalyzer(AnalyzerConfig{}).Analyze(cs)
	require.NotNil(t, res.CurrentStats.Mean)
	require.NotNil(t, res.CurrentStats.Std)
	assert.Equal(t, 9e307, *res.CurrentStats.Mean)
	assert.Equal(t, 0.0, *res.CurrentStats.Std)
}

func TestMeanAndStdDoNotOverflow(t *testing.T) {
	v := []float64{8e307, 9e307, 1e308}
	assert.InEpsilon(t, 9e307, mean(v), 1e-12)
	assert.InEpsilon(t, 1e307, sampleStd(v), 1e-9)
	assert.InEpsilon(t, 1e307*math.Sqrt(2.0/3.0), populationStd(v), 1e-9)

	assert.InDelta(t, 0.0, mean([]float64{1.5e308, -1.5e308}), 1e-300)
	assert.InDelta(t, 2.5, mean([]float64{1, 2, 3, 4}), 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), sampleStd([]float64{1, 2, 3, 4}), 1e-12)
	assert.True(t, math.IsNaN(mean(nil)))
	assert.Equal(t, 0.0, mean([]float64{0, 0}))
}
