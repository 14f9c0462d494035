package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"EduPulse/internal/domain/models"
	"EduPulse/internal/domain/service"

	"golang.org/x/sync/errgroup"
)

// Outlier methods, actions, imputation and normalization modes.
const (
	OutlierIQR    = "iqr"
	OutlierZScore = "zscore"

	OutlierFlag = "flag"
	OutlierClip = "clip"
	OutlierDrop = "drop"

	ImputeLinear = "linear"
	ImputeFFill  = "ffill"

	NormalizeNone   = "none"
	NormalizeIndex  = "index"
	NormalizeMaxAbs = "max_abs"
)

// CleanerConfig controls numeric validation, outlier handling and imputation.
type CleanerConfig struct {
	MaxAbsValue      float64
	OutlierMethod    string
	OutlierThreshold float64
	OutlierAction    string
	MinOutlierPoints int
	Imputation       string
	Normalization    string
	Workers          int
}

// DefaultCleanerConfig returns the defaults used when a field is left zero.
func DefaultCleanerConfig() CleanerConfig {
	return CleanerConfig{
		MaxAbsValue:      1e308,
		OutlierMethod:    OutlierIQR,
		OutlierThreshold: 1.5,
		OutlierAction:    OutlierClip,
		MinOutlierPoints: 4,
		Imputation:       ImputeLinear,
		Normalization:    NormalizeNone,
		Workers:          4,
	}
}

// Cleaner validates values, handles outliers and fills interior gaps.
type Cleaner struct {
	cfg CleanerConfig
}

// NewCleaner creates a Cleaner, filling zero fields from DefaultCleanerConfig.
func NewCleaner(cfg CleanerConfig) *Cleaner {
	def := DefaultCleanerConfig()
	if cfg.MaxAbsValue <= 0 {
		cfg.MaxAbsValue = def.MaxAbsValue
	}
	if cfg.OutlierMethod == "" {
		cfg.OutlierMethod = def.OutlierMethod
	}
	if cfg.OutlierThreshold <= 0 {
		if cfg.OutlierMethod == OutlierZScore {
			cfg.OutlierThreshold = 3
		} else {
			cfg.OutlierThreshold = def.OutlierThreshold
		}
	}
	if cfg.OutlierAction == "" {
		cfg.OutlierAction = def.OutlierAction
	}
	if cfg.MinOutlierPoints <= 0 {
		cfg.MinOutlierPoints = def.MinOutlierPoints
	}
	if cfg.Imputation == "" {
		cfg.Imputation = def.Imputation
	}
	if cfg.Normalization == "" {
		cfg.Normalization = def.Normalization
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	return &Cleaner{cfg: cfg}
}

// Clean returns a cleaned copy of s. It fails only with ErrEmptySeries.
func (c *Cleaner) Clean(s *models.Series) (*models.CleanedSeries, error) {
	n := len(s.Points)
	cs := &models.CleanedSeries{
		Key:    s.Key,
		Points: make([]models.Observation, n),
		Flags:  make([]models.QualityFlag, n),
		Quality: models.SeriesQuality{
			Initial:      n,
			Duplicates:   s.Ingest.Duplicates,
			InvalidDates: s.Ingest.InvalidDates,
		},
	}
	copy(cs.Points, s.Points)

	c.dropOutOfRange(cs)
	c.handleOutliers(cs)
	c.impute(cs)
	c.normalize(cs)

	for i, p := range cs.Points {
		if p.Present {
			cs.Quality.Usable++
		} else if !cs.Flags[i].Has(models.FlagOutOfRangeDropped) && !cs.Flags[i].Has(models.FlagOutlierDropped) {
			cs.Flags[i] |= models.FlagMissing
		}
	}
	if cs.Quality.Usable == 0 {
		return cs, EmptySeriesError(s.Key)
	}
	return cs, nil
}

// CleanResult is the outcome of cleaning one series of a dataset.
type CleanResult struct {
	Series *models.CleanedSeries
	Err    error
}

// CleanAll cleans every series of ds concurrently. Per-series errors are returned in the map,
// the returned error is only set when ctx is cancelled.
func (c *Cleaner) CleanAll(ctx context.Context, ds *models.Dataset) (map[string]CleanResult, error) {
	keys := make([]string, 0, len(ds.Series))
	for k := range ds.Series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]CleanResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, key := range keys {
		i, s := i, ds.Series[key]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cs, err := c.Clean(s)
			results[i] = CleanResult{Series: cs, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}

	out := make(map[string]CleanResult, len(keys))
	for i, key := range keys {
		out[key] = results[i]
	}
	return out, nil
}

func (c *Cleaner) dropOutOfRange(cs *models.CleanedSeries) {
	for i := range cs.Points {
		p := &cs.Points[i]
		if p.Present && !finite(p.Value, c.cfg.MaxAbsValue) {
			p.Present = false
			p.Value = 0
			cs.Flags[i] |= models.FlagOutOfRangeDropped
			cs.Quality.OutOfRange++
		}
	}
}

// outlierBounds returns the accepted [lo, hi] band over present values.
func (c *Cleaner) outlierBounds(values []float64) (lo, hi float64, ok bool) {
	if len(values) < c.cfg.MinOutlierPoints {
		return 0, 0, false
	}
	k := c.cfg.OutlierThreshold
	switch c.cfg.OutlierMethod {
	case OutlierZScore:
		m, sd := mean(values), populationStd(values)
		if sd == 0 || math.IsNaN(sd) {
			return 0, 0, false
		}
		return m - k*sd, m + k*sd, true
	default:
		sorted := sortedCopy(values)
		q1, q3 := quantile(sorted, 0.25), quantile(sorted, 0.75)
		iqr := q3 - q1
		if iqr == 0 {
			return 0, 0, false
		}
		return q1 - k*iqr, q3 + k*iqr, true
	}
}

func (c *Cleaner) handleOutliers(cs *models.CleanedSeries) {
	values := make([]float64, 0, len(cs.Points))
	for _, p := range cs.Points {
		if p.Present {
			values = append(values, p.Value)
		}
	}
	lo, hi, ok := c.outlierBounds(values)
	if !ok {
		return
	}
	for i := range cs.Points {
		p := &cs.Points[i]
		if !p.Present || (p.Value >= lo && p.Value <= hi) {
			continue
		}
		cs.Quality.Outliers++
		switch c.cfg.OutlierAction {
		case OutlierDrop:
			p.Present = false
			p.Value = 0
			cs.Flags[i] |= models.FlagOutlierDropped
			cs.Quality.OutliersDropped++
		case OutlierFlag:
			cs.Flags[i] |= models.FlagOutlierFlagged
		default:
			p.Value = math.Max(lo, math.Min(hi, p.Value))
			cs.Flags[i] |= models.FlagOutlierClipped
		}
	}
}

// impute fills interior gaps. Leading and trailing gaps stay absent.
func (c *Cleaner) impute(cs *models.CleanedSeries) {
	first, last := -1, -1
	for i, p := range cs.Points {
		if p.Present {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return
	}
	for i := first + 1; i < last; i++ {
		if cs.Points[i].Present {
			continue
		}
		cs.Quality.Missing++
		prev := i - 1
		next := i + 1
		for !cs.Points[next].Present {
			next++
		}
		v := cs.Points[prev].Value
		if c.cfg.Imputation != ImputeFFill {
			frac := float64(i-prev) / float64(next-prev)
			v += (cs.Points[next].Value - v) * frac
		}
		cs.Points[i].Value = v
		cs.Points[i].Present = true
		cs.Flags[i] |= models.FlagImputed
		cs.Quality.Imputed++
	}
	for i := range cs.Points {
		if (i < first || i > last) && !cs.Points[i].Present {
			cs.Quality.Missing++
		}
	}
}

// normalize rescales the whole series by one factor so growth ratios are preserved.
func (c *Cleaner) normalize(cs *models.CleanedSeries) {
	var factor float64
	switch c.cfg.Normalization {
	case NormalizeIndex:
		for _, p := range cs.Points {
			if p.Present {
				// a non-positive base would flip or void the series
				if p.Value > 0 {
					factor, _ = safeDiv(100, p.Value)
				}
				break
			}
		}
	case NormalizeMaxAbs:
		factor, _ = safeDiv(1, maxAbs(cs.Values()))
	default:
		return
	}
	if factor == 0 {
		return
	}
	// all or nothing: a value pushed out of range leaves the series unscaled
	for _, p := range cs.Points {
		if p.Present && !finite(p.Value*factor, c.cfg.MaxAbsValue) {
			return
		}
	}
	for i := range cs.Points {
		if cs.Points[i].Present {
			cs.Points[i].Value *= factor
		}
	}
}

var _ service.Cleaner = (*Cleaner)(nil)
