package models

// Requests for analytics HTTP endpoints. The upload itself arrives as the multipart "file" field.

type AnalyzeRequest struct {
	IncludeForecast       bool   `query:"include_forecast" json:"include_forecast" default:"true"`
	IncludeVisualizations bool   `query:"include_visualizations" json:"include_visualizations" default:"false"`
	ExportFormat          string `query:"export_format" json:"export_format" validate:"omitempty,oneof=csv json"`
	Format                string `query:"format" json:"format" validate:"omitempty,oneof=csv json"`
}

type QuickAnalysisRequest struct {
	Category string `query:"category" json:"category" validate:"omitempty,max=128"`
	Format   string `query:"format" json:"format" validate:"omitempty,oneof=csv json"`
}
