package analytics

import (
	"context"
	"errors"
	"math"
	"testing"

	"EduPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanDropsNonFinite(t *testing.T) {
	c := NewCleaner(CleanerConfig{})
	cs, err := c.Clean(mkSeries("s", 1, math.NaN(), 3, math.Inf(1), 5, math.Inf(-1)))
	require.NoError(t, err)

	for _, v := range cs.Values() {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	assert.Equal(t, 3, cs.Quality.OutOfRange)
	assert.True(t, cs.Flags[1].Has(models.FlagOutOfRangeDropped))
	assert.True(t, cs.Flags[1].Has(models.FlagImputed), "interior gap is interpolated")
	assert.Equal(t, 2.0, cs.Points[1].Value)
	assert.False(t, cs.Points[5].Present, "trailing gap stays absent")
	assert.False(t, cs.Flags[5].Has(models.FlagMissing))
}

func TestCleanMaxAbsValue(t *testing.T) {
	c := NewCleaner(CleanerConfig{MaxAbsValue: 1000})
	cs, err := c.Clean(mkSeries("s", 1, 2, 5000))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, cs.Values())
	assert.Equal(t, 1, cs.Quality.OutOfRange)
}

func TestCleanLeadingAndTrailingGaps(t *testing.T) {
	cs, err := NewCleaner(CleanerConfig{}).Clean(mkSeries("s", nil, 2, nil, 4, nil))
	require.NoError(t, err)

	assert.Equal(t, []float64{2, 3, 4}, cs.Values())
	assert.Equal(t, models.FlagMissing, cs.Flags[0])
	assert.Equal(t, models.FlagImputed, cs.Flags[2])
	assert.Equal(t, models.FlagMissing, cs.Flags[4])
	assert.Equal(t, 3, cs.Quality.Missing)
	assert.Equal(t, 1, cs.Quality.Imputed)
	assert.Equal(t, 3, cs.Quality.Usable)
}

func TestCleanForwardFill(t *testing.T) {
	cs, err := NewCleaner(CleanerConfig{Imputation: ImputeFFill}).Clean(mkSeries("s", 1, nil, nil, 4))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 4}, cs.Values())
}

func TestCleanOutlierActions(t *testing.T) {
	cases := []struct {
		action string
		flag   models.QualityFlag
		values []float64
	}{
		{OutlierClip, models.FlagOutlierClipped, []float64{10, 11, 12, 13, 16}},
		{OutlierFlag, models.FlagOutlierFlagged, []float64{10, 11, 12, 13, 100}},
		{OutlierDrop, models.FlagOutlierDropped, []float64{10, 11, 12, 13}},
	}
	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			c := NewCleaner(CleanerConfig{OutlierAction: tc.action})
			cs, err := c.Clean(mkSeries("s", 10, 11, 12, 13, 100))
			require.NoError(t, err)
			assert.Equal(t, tc.values, cs.Values())
			assert.True(t, cs.Flags[4].Has(tc.flag))
			assert.Equal(t, 1, cs.Quality.Outliers)
		})
	}
}

func TestCleanOutlierThresholdBoundary(t *testing.T) {
	// q1=11, q3=13: a threshold of 1.5 puts the upper bound exactly on 16
	cs, err := NewCleaner(CleanerConfig{OutlierThreshold: 1.5, OutlierAction: OutlierFlag}).Clean(mkSeries("s", 10, 11, 12, 13, 16))
	require.NoError(t, err)
	assert.Zero(t, cs.Quality.Outliers, "a value on the bound is kept")

	cs, err = NewCleaner(CleanerConfig{OutlierThreshold: 1.25, OutlierAction: OutlierFlag}).Clean(mkSeries("s", 10, 11, 12, 13, 16))
	require.NoError(t, err)
	assert.Equal(t, 1, cs.Quality.Outliers)
	assert.True(t, cs.Flags[4].Has(models.FlagOutlierFlagged))
}

func TestCleanOutliersNeedMinPoints(t *testing.T) {
	cs, err := NewCleaner(CleanerConfig{}).Clean(mkSeries("s", 1, 2, 100))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 100}, cs.Values())
	assert.Zero(t, cs.Quality.Outliers)
}

func TestCleanZScore(t *testing.T) {
	c := NewCleaner(CleanerConfig{OutlierMethod: OutlierZScore, OutlierThreshold: 1.5, OutlierAction: OutlierFlag})
	cs, err := c.Clean(mkSeries("s", 10, 10, 10, 10, 10, 10, 50))
	require.NoError(t, err)
	assert.True(t, cs.Flags[6].Has(models.FlagOutlierFlagged))
	assert.Equal(t, 1, cs.Quality.Outliers)
}

func TestCleanNormalizationPreservesRatios(t *testing.T) {
	cs, err := NewCleaner(CleanerConfig{Normalization: NormalizeIndex}).Clean(mkSeries("s", 50, 100))
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200}, cs.Values())

	cs, err = NewCleaner(CleanerConfig{Normalization: NormalizeMaxAbs}).Clean(mkSeries("s", -2, 4))
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.5, 1}, cs.Values())
}

func TestCleanNormalizationKeepsValuesFinite(t *testing.T) {
	raw := []float64{1e-300, 1e10, 2e10, 3e10, 4e10}
	cs, err := NewCleaner(CleanerConfig{Normalization: NormalizeIndex}).Clean(mkSeries("s", 1e-300, 1e10, 2e10, 3e10, 4e10))
	require.NoError(t, err)
	assert.Equal(t, raw, cs.Values(), "scaling would overflow, so the series stays as it is")

	res := NewAnalyzer(AnalyzerConfig{}).Analyze(cs)
	require.NotNil(t, res.CurrentStats.Mean)
	require.NotNil(t, res.CurrentStats.LastValue)
	assert.Equal(t, 4e10, *res.CurrentStats.LastValue)
}

func TestCleanIndexNormalizationNeedsPositiveBase(t *testing.T) {
	c := NewCleaner(CleanerConfig{Normalization: NormalizeIndex})
	cs, err := c.Clean(mkSeries("s", -10, -8, -6, -4, -2))
	require.NoError(t, err)
	assert.Equal(t, []float64{-10, -8, -6, -4, -2}, cs.Values())
	assert.Equal(t, models.TrendIncreasing, NewAnalyzer(AnalyzerConfig{}).Analyze(cs).Trend.Direction)

	cs, err = c.Clean(mkSeries("s", 0, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, cs.Values())

	cs, err = c.Clean(mkSeries("s", nil, 4, 2, 6))
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 50, 150}, cs.Values(), "base is the first usable value")
}

func TestCleanEmptySeries(t *testing.T) {
	cs, err := NewCleaner(CleanerConfig{}).Clean(mkSeries("s", nil, math.NaN()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptySeries))
	require.NotNil(t, cs)
	assert.Zero(t, cs.Quality.Usable)
	assert.Empty(t, cs.Values())
}

func TestCleanAll(t *testing.T) {
	ds := &models.Dataset{Series: map[string]*models.Series{
		"a": mkSeries("a", 1, 2, 3),
		"b": mkSeries("b", nil, nil),
	}}
	out, err := NewCleaner(CleanerConfig{Workers: 2}).CleanAll(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NoError(t, out["a"].Err)
	assert.True(t, errors.Is(out["b"].Err, ErrEmptySeries))
}

func TestCleanAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ds := &models.Dataset{Series: map[string]*models.Series{"a": mkSeries("a", 1)}}
	_, err := NewCleaner(CleanerConfig{}).CleanAll(ctx, ds)
	assert.True(t, errors.Is(err, context.Canceled))
}
