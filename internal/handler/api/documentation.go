package api

// Documentation describes the analytics endpoints for API consumers.
type Documentation struct {
	Version       string                   `json:"version"`
	Endpoints     map[string]EndpointDoc   `json:"endpoints"`
	DataFormats   map[string]DataFormatDoc `json:"data_formats"`
	NumericLimits NumericLimits            `json:"numeric_limits"`
}

type EndpointDoc struct {
	Method        string            `json:"method"`
	Description   string            `json:"description"`
	Parameters    map[string]string `json:"parameters"`
	ErrorHandling map[string]string `json:"error_handling,omitempty"`
}

type DataFormatDoc struct {
	Description string `json:"description"`
	Example     string `json:"example"`
}

type NumericLimits struct {
	MaxValue       float64 `json:"max_value"`
	MinValue       float64 `json:"min_value"`
	MaxUploadBytes int64   `json:"max_upload_bytes"`
	Description    string  `json:"description"`
}

func newDocumentation(maxAbs float64, maxUpload int64) Documentation {
	errs := map[string]string{
		"400": "Invalid input, unsupported format or validation error",
		"401": "Missing or invalid API key",
		"404": "Requested category not present in the upload",
		"408": "Processing timeout",
		"413": "Payload too large",
		"429": "Rate limit exceeded",
		"500": "Internal server error",
	}
	return Documentation{
		Version: "1.0",
		Endpoints: map[string]EndpointDoc{
			"/analyze": {
				Method:      "POST",
				Description: "Complete analysis pipeline: cleaning, trend, growth, forecast and charts",
				Parameters: map[string]string{
					"file":                   "CSV or JSON file with time series data",
					"include_forecast":       "Boolean, default true",
					"include_visualizations": "Boolean, default false",
					"export_format":          "Optional: csv or json; the response becomes a file download",
					"format":                 "Optional: csv or json when the file name does not tell",
				},
				ErrorHandling: errs,
			},
			"/quick-analysis": {
				Method:      "POST",
				Description: "Trend, growth and current value per series without forecasting",
				Parameters: map[string]string{
					"file":     "CSV or JSON file with time series data",
					"category": "Optional: analyze one category only",
				},
				ErrorHandling: errs,
			},
		},
		DataFormats: map[string]DataFormatDoc{
			"date-category-value": {
				Description: "Long table with date, category and value columns",
				Example:     "date,category,value\n2024-01-01,math,78\n",
			},
			"date-pairs": {
				Description: "Wide table with a date column and one column per series",
				Example:     "date,math,art\n2024-01-01,78,64\n",
			},
			"json-records": {
				Description: "JSON array of records with date, category and value fields",
				Example:     `[{"date":"2024-01-01","category":"math","value":78}]`,
			},
		},
		NumericLimits: NumericLimits{
			MaxValue:       maxAbs,
			MinValue:       -maxAbs,
			MaxUploadBytes: maxUpload,
			Description:    "Values outside these limits are dropped and counted in quality metrics",
		},
	}
}
