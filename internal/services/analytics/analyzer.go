package analytics

import (
	"math"

	"EduPulse/internal/domain/models"
	"EduPulse/internal/domain/service"
)

// AnalyzerConfig controls trend classification and growth windows.
type AnalyzerConfig struct {
	// SignificanceThreshold is the minimum |slope / mean(|v|)| for a non-stable trend.
	SignificanceThreshold float64
	RecentWindow          int
	MinTrendPoints        int
	Confidence            float64
}

// DefaultAnalyzerConfig returns the defaults used when a field is left zero.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		SignificanceThreshold: 0.01,
		RecentWindow:          7,
		MinTrendPoints:        3,
		Confidence:            0.95,
	}
}

// Analyzer computes descriptive statistics, trend and growth.
type Analyzer struct {
	cfg AnalyzerConfig
}

// NewAnalyzer creates an Analyzer, filling zero fields from DefaultAnalyzerConfig.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	def := DefaultAnalyzerConfig()
	if cfg.SignificanceThreshold <= 0 {
		cfg.SignificanceThreshold = def.SignificanceThreshold
	}
	if cfg.RecentWindow < 2 {
		cfg.RecentWindow = def.RecentWindow
	}
	if cfg.MinTrendPoints < 2 {
		cfg.MinTrendPoints = def.MinTrendPoints
	}
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		cfg.Confidence = def.Confidence
	}
	return &Analyzer{cfg: cfg}
}

// Analyze is deterministic: the same series always yields the same result.
func (a *Analyzer) Analyze(cs *models.CleanedSeries) models.AnalyticsResult {
	values := cs.Values()
	return models.AnalyticsResult{
		Trend:        a.trend(values),
		Growth:       a.growth(values),
		CurrentStats: currentStats(values),
		Summary:      summary(values),
	}
}

func currentStats(v []float64) models.CurrentStats {
	var st models.CurrentStats
	if len(v) == 0 {
		return st
	}
	st.LastValue = models.Float(v[len(v)-1])
	st.Mean = models.Float(mean(v))
	if len(v) >= 2 {
		st.Std = models.Float(sampleStd(v))
	}
	return st
}

func summary(v []float64) models.Summary {
	s := models.Summary{Count: len(v)}
	if len(v) == 0 {
		return s
	}
	sorted := sortedCopy(v)
	s.Min = models.Float(sorted[0])
	s.Max = models.Float(sorted[len(sorted)-1])
	s.Median = models.Float(quantile(sorted, 0.5))
	return s
}

func (a *Analyzer) trend(v []float64) models.Trend {
	t := models.Trend{Direction: models.TrendUnknown}
	if len(v) < a.cfg.MinTrendPoints {
		return t
	}
	fit, ok := fitLine(v)
	if !ok {
		return t
	}
	t.Slope = models.Float(fit.slope)
	t.Intercept = models.Float(fit.intercept)
	if !math.IsNaN(fit.r2) {
		t.Strength = models.Float(fit.r2)
	}

	if fit.slope == 0 {
		t.Direction = models.TrendStable
		return t
	}
	scale := 0.0
	for _, x := range v {
		scale += math.Abs(x)
	}
	rel, ok := safeDiv(fit.slope, scale/float64(len(v)))
	if !ok {
		return t
	}
	switch {
	case math.Abs(rel) < a.cfg.SignificanceThreshold:
		t.Direction = models.TrendStable
	case rel > 0:
		t.Direction = models.TrendIncreasing
	default:
		t.Direction = models.TrendDecreasing
	}
	t.Significant = t.Direction != models.TrendStable && a.slopeSignificant(fit)
	return t
}

// slopeSignificant runs a two-sided t-test of slope != 0.
func (a *Analyzer) slopeSignificant(fit linearFit) bool {
	se := fit.slopeStdErr()
	if math.IsNaN(se) {
		return false
	}
	if se == 0 {
		return true
	}
	return math.Abs(fit.slope/se) >= tCritical(a.cfg.Confidence, fit.n-2)
}

func (a *Analyzer) growth(v []float64) models.Growth {
	var g models.Growth
	n := len(v)
	if n < 2 {
		return g
	}
	if r, ok := safeDiv(v[n-1]-v[0], v[0]); ok {
		g.Total = models.NewPercent(r)
	}
	if w := a.cfg.RecentWindow; n >= w {
		base := v[n-w]
		if r, ok := safeDiv(v[n-1]-base, base); ok {
			g.Recent = models.NewPercent(r)
		}
	}
	return g
}

var _ service.Analyzer = (*Analyzer)(nil)
