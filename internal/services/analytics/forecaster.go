package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"EduPulse/internal/domain/models"
	"EduPulse/internal/domain/service"
	"EduPulse/pkg/util"
)

// Forecast methods.
const (
	ForecastLinear = "linear"
	ForecastHolt   = "holt"
)

// ForecasterConfig controls forecast availability, horizon and model.
type ForecasterConfig struct {
	MinPoints     int
	Horizon       int
	Method        string
	Alpha         float64
	Beta          float64
	IntervalWidth float64
}

// DefaultForecasterConfig returns the defaults used when a field is left zero.
func DefaultForecasterConfig() ForecasterConfig {
	return ForecasterConfig{
		MinPoints:     5,
		Horizon:       30,
		Method:        ForecastLinear,
		Alpha:         0.5,
		Beta:          0.3,
		IntervalWidth: 2,
	}
}

// Forecaster projects a cleaned series forward and reports backtest errors.
type Forecaster struct {
	cfg ForecasterConfig
}

// NewForecaster creates a Forecaster, filling zero fields from DefaultForecasterConfig.
func NewForecaster(cfg ForecasterConfig) *Forecaster {
	def := DefaultForecasterConfig()
	if cfg.MinPoints < 3 {
		cfg.MinPoints = def.MinPoints
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	if cfg.Method == "" {
		cfg.Method = def.Method
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = def.Alpha
	}
	if cfg.Beta <= 0 || cfg.Beta > 1 {
		cfg.Beta = def.Beta
	}
	if cfg.IntervalWidth <= 0 {
		cfg.IntervalWidth = def.IntervalWidth
	}
	return &Forecaster{cfg: cfg}
}

// MinPoints is the smallest series length that gets a forecast.
func (f *Forecaster) MinPoints() int { return f.cfg.MinPoints }

// Forecast never fails: short series and model failures yield available=false.
func (f *Forecaster) Forecast(cs *models.CleanedSeries) (out models.Forecast) {
	values := cs.Values()
	if len(values) < f.cfg.MinPoints {
		return models.Forecast{Available: false}
	}

	defer func() {
		if r := recover(); r != nil {
			out = models.Forecast{Available: false, Error: fmt.Sprintf("forecast failed: %v", r)}
		}
	}()

	var (
		preds  []float64
		errs   []float64
		method = f.cfg.Method
	)
	switch method {
	case ForecastHolt:
		preds, errs = f.holt(values)
	default:
		method = ForecastLinear
		preds, errs = f.linear(values)
	}
	if preds == nil {
		return models.Forecast{Available: false, Method: method, Error: "model could not be fitted"}
	}

	metrics, ok := errorMetrics(errs)
	if !ok {
		return models.Forecast{Available: false, Method: method, Error: "non-finite error metrics"}
	}

	times := cs.Times()
	step := medianStep(times)
	last := times[len(times)-1]
	points := make([]models.ForecastPoint, len(preds))
	for i, p := range preds {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return models.Forecast{Available: false, Method: method, Error: "non-finite prediction"}
		}
		band := f.cfg.IntervalWidth * metrics.StdError
		points[i] = models.ForecastPoint{
			Date:  util.FormatDate(advance(last, step, i+1)),
			Value: p,
			Lower: p - band,
			Upper: p + band,
		}
	}
	return models.Forecast{
		Available:   true,
		Method:      method,
		Metrics:     &metrics,
		Predictions: points,
	}
}

// linear extrapolates an OLS fit; errors are in-sample residuals.
func (f *Forecaster) linear(v []float64) (preds, errs []float64) {
	fit, ok := fitLine(v)
	if !ok {
		return nil, nil
	}
	errs = make([]float64, len(v))
	for i, y := range v {
		errs[i] = y - fit.at(float64(i))
	}
	preds = make([]float64, f.cfg.Horizon)
	for h := range preds {
		preds[h] = fit.at(float64(len(v) + h))
	}
	return preds, errs
}

// holt is double exponential smoothing; errors are one-step-ahead.
func (f *Forecaster) holt(v []float64) (preds, errs []float64) {
	a, b := f.cfg.Alpha, f.cfg.Beta
	level, trend := v[0], v[1]-v[0]
	errs = make([]float64, 0, len(v)-1)
	for _, y := range v[1:] {
		errs = append(errs, y-(level+trend))
		prev := level
		level = a*y + (1-a)*(level+trend)
		trend = b*(level-prev) + (1-b)*trend
	}
	preds = make([]float64, f.cfg.Horizon)
	for h := range preds {
		preds[h] = level + float64(h+1)*trend
	}
	return preds, errs
}

func errorMetrics(errs []float64) (models.ForecastMetrics, bool) {
	if len(errs) == 0 {
		return models.ForecastMetrics{}, false
	}
	var absSum, sqSum float64
	for _, e := range errs {
		absSum += math.Abs(e)
		sqSum += e * e
	}
	n := float64(len(errs))
	m := models.ForecastMetrics{
		MAE:      absSum / n,
		RMSE:     math.Sqrt(sqSum / n),
		StdError: populationStd(errs),
	}
	for _, x := range []float64{m.MAE, m.RMSE, m.StdError} {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return models.ForecastMetrics{}, false
		}
	}
	return m, true
}

// medianStep is the median spacing between timestamps, 24h when it cannot be inferred.
func medianStep(times []time.Time) time.Duration {
	if len(times) < 2 {
		return 24 * time.Hour
	}
	steps := make([]time.Duration, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		steps = append(steps, times[i].Sub(times[i-1]))
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
	step := steps[len(steps)/2]
	if step <= 0 {
		return 24 * time.Hour
	}
	return step
}

// advance moves t forward by n steps, keeping calendar months for monthly data.
func advance(t time.Time, step time.Duration, n int) time.Time {
	days := step.Hours() / 24
	switch {
	case days >= 28 && days <= 31:
		return t.AddDate(0, n, 0)
	case days >= 365 && days <= 366:
		return t.AddDate(n, 0, 0)
	default:
		return t.Add(time.Duration(n) * step)
	}
}

var _ service.Forecaster = (*Forecaster)(nil)
