package service

import (
	"context"

	"EduPulse/internal/domain/models"
)

// Ingestor parses raw upload bytes into a dataset.
type Ingestor interface {
	Ingest(raw []byte, hint models.FormatHint) (*models.Dataset, error)
}

// Cleaner turns a raw series into a cleaned series.
type Cleaner interface {
	Clean(s *models.Series) (*models.CleanedSeries, error)
}

// Analyzer computes statistics, trend and growth of a cleaned series.
type Analyzer interface {
	Analyze(cs *models.CleanedSeries) models.AnalyticsResult
}

// Forecaster projects a cleaned series forward.
type Forecaster interface {
	Forecast(cs *models.CleanedSeries) models.Forecast
}

// ChartBuilder renders chart configurations for a report.
type ChartBuilder interface {
	Build(ctx context.Context, cleaned map[string]*models.CleanedSeries, results map[string]models.AnalyticsResult) (map[string]models.Chart, error)
}
