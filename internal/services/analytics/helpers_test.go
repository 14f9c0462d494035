package analytics

import (
	"time"

	"EduPulse/internal/domain/models"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// mkSeries builds a daily series starting at day0. A nil entry is an absent value.
func mkSeries(key string, vals ...any) *models.Series {
	s := &models.Series{Key: key, Points: make([]models.Observation, len(vals))}
	for i, v := range vals {
		obs := models.Observation{Time: day0.AddDate(0, 0, i)}
		switch x := v.(type) {
		case nil:
		case int:
			obs.Value, obs.Present = float64(x), true
		case float64:
			obs.Value, obs.Present = x, true
		}
		s.Points[i] = obs
	}
	return s
}

// mkCleaned builds a cleaned series of present daily values.
func mkCleaned(key string, vals ...float64) *models.CleanedSeries {
	cs := &models.CleanedSeries{
		Key:    key,
		Points: make([]models.Observation, len(vals)),
		Flags:  make([]models.QualityFlag, len(vals)),
	}
	for i, v := range vals {
		cs.Points[i] = models.Observation{Time: day0.AddDate(0, 0, i), Value: v, Present: true}
	}
	cs.Quality.Initial = len(vals)
	cs.Quality.Usable = len(vals)
	return cs
}

func fixedAssembler() *Assembler {
	return NewAssembler(
		WithClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }),
		WithIDGenerator(func() string { return "report-1" }),
	)
}
