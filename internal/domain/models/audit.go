package models

import "time"

// Audit actions written by the analytics endpoints.
const (
	ActionAnalyzeData   = "ANALYZE_DATA"
	ActionQuickAnalysis = "QUICK_ANALYSIS"
	AuditTableAnalytics = "analytics_data"
)

// Identity is the authenticated caller of an endpoint.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// AuditEntry records who ran which action against which table.
type AuditEntry struct {
	RequestID string    `json:"request_id"`
	Action    string    `json:"action"`
	Table     string    `json:"table"`
	UserID    string    `json:"user_id"`
	IPAddress string    `json:"ip_address"`
	Timestamp time.Time `json:"timestamp"`
}

// AnalysisEvent is published when an analysis completes.
type AnalysisEvent struct {
	ReportID     string    `json:"report_id"`
	RequestID    string    `json:"request_id"`
	UserID       string    `json:"user_id"`
	Format       Format    `json:"format"`
	SeriesCount  int       `json:"series_count"`
	OmittedCount int       `json:"omitted_count"`
	QualityScore float64   `json:"quality_score"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
