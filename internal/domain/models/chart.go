package models

// Chart is a renderer-agnostic chart configuration.
type Chart struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// ChartDataset is one plotted line or bar group. Nil entries are gaps.
type ChartDataset struct {
	Label string     `json:"label"`
	Data  []*float64 `json:"data"`
	Color string     `json:"color"`
	Dash  bool       `json:"dash,omitempty"`
}
