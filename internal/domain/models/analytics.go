package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// TrendDirection is the tagged direction of a fitted trend.
type TrendDirection uint8

const (
	TrendUnknown TrendDirection = iota
	TrendIncreasing
	TrendDecreasing
	TrendStable
)

func (d TrendDirection) String() string {
	switch d {
	case TrendIncreasing:
		return "increasing"
	case TrendDecreasing:
		return "decreasing"
	case TrendStable:
		return "stable"
	case TrendUnknown:
		return "unknown"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (d TrendDirection) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *TrendDirection) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "increasing":
		*d = TrendIncreasing
	case "decreasing":
		*d = TrendDecreasing
	case "stable":
		*d = TrendStable
	case "unknown", "":
		*d = TrendUnknown
	default:
		return fmt.Errorf("unknown trend direction %q", string(b))
	}
	return nil
}

// Trend describes the linear tendency of a series.
type Trend struct {
	Direction   TrendDirection `json:"direction"`
	Strength    *float64       `json:"strength"`
	Significant bool           `json:"significant"`

	Slope     *float64 `json:"-"`
	Intercept *float64 `json:"-"`
}

// Percent is a ratio rendered as a percentage string with two decimals, e.g. 0.21 -> "21.00%".
type Percent float64

// NewPercent returns a pointer to p, or nil when p is not finite.
func NewPercent(ratio float64) *Percent {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil
	}
	p := Percent(ratio)
	return &p
}

func (p Percent) String() string {
	return decimal.NewFromFloat(float64(p)).Shift(2).StringFixed(2) + "%"
}

// MarshalJSON implements json.Marshaler.
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON accepts "21.00%" strings and plain ratios.
func (p *Percent) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if strings.HasSuffix(s, "%") {
		d, err := decimal.NewFromString(strings.TrimSuffix(s, "%"))
		if err != nil {
			return fmt.Errorf("parse percent: %w", err)
		}
		f, _ := d.Shift(-2).Float64()
		*p = Percent(f)
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("parse percent: %w", err)
	}
	f, _ := d.Float64()
	*p = Percent(f)
	return nil
}

// Growth holds total and recent-window growth ratios.
type Growth struct {
	Total  *Percent `json:"total"`
	Recent *Percent `json:"recent"`
}

// CurrentStats holds the headline descriptive statistics.
type CurrentStats struct {
	LastValue *float64 `json:"last_value"`
	Mean      *float64 `json:"mean"`
	Std       *float64 `json:"std"`
}

// Summary holds the remaining descriptive statistics.
type Summary struct {
	Count  int      `json:"count"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Median *float64 `json:"median"`
}

// ForecastMetrics are backtest error metrics of a forecast model.
type ForecastMetrics struct {
	MAE      float64 `json:"mae"`
	RMSE     float64 `json:"rmse"`
	StdError float64 `json:"std_error"`
}

// ForecastPoint is one projected value with its interval.
type ForecastPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Forecast is the short-horizon projection of a series.
type Forecast struct {
	Available   bool             `json:"available"`
	Method      string           `json:"method,omitempty"`
	Metrics     *ForecastMetrics `json:"metrics"`
	Predictions []ForecastPoint  `json:"predictions,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// AnalyticsResult is the per-series outcome of analysis.
type AnalyticsResult struct {
	Trend        Trend        `json:"trend"`
	Growth       Growth       `json:"growth"`
	CurrentStats CurrentStats `json:"current_stats"`
	Summary      Summary      `json:"summary"`
	Forecast     *Forecast    `json:"forecast,omitempty"`
}

// Float returns a pointer to v, or nil when v is not finite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func roundTo(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
