package models

import (
	"strings"
	"time"
)

// Format is the wire format of an uploaded dataset.
type Format string

const (
	FormatUnknown Format = ""
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
)

// ParseFormat maps a declared format name to a Format.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV
	case "json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// FormatHint carries what the caller knows about an upload.
type FormatHint struct {
	Declared    Format
	Filename    string
	ContentType string
}

// Observation is one (timestamp, value) row. Present=false marks an absent value.
type Observation struct {
	Time    time.Time
	Value   float64
	Present bool
}

// IngestStats counts rows seen while building one series.
type IngestStats struct {
	Rows          int `json:"rows"`
	InvalidDates  int `json:"invalid_dates"`
	InvalidValues int `json:"invalid_values"`
	Duplicates    int `json:"duplicates"`
}

// Series is a time-ordered list of observations with strictly increasing timestamps.
type Series struct {
	Key    string
	Points []Observation
	Ingest IngestStats
}

// Dataset maps series keys to series parsed from one upload.
type Dataset struct {
	Format  Format
	Series  map[string]*Series
	Details map[string]string
}

// QualityFlag marks what the cleaner did to a row.
type QualityFlag uint8

const (
	FlagMissing QualityFlag = 1 << iota
	FlagImputed
	FlagOutlierClipped
	FlagOutlierFlagged
	FlagOutlierDropped
	FlagOutOfRangeDropped
)

var flagNames = []struct {
	flag QualityFlag
	name string
}{
	{FlagMissing, "missing"},
	{FlagImputed, "imputed"},
	{FlagOutlierClipped, "outlier-clipped"},
	{FlagOutlierFlagged, "outlier-flagged"},
	{FlagOutlierDropped, "outlier-dropped"},
	{FlagOutOfRangeDropped, "out-of-range-dropped"},
}

// Has reports whether all bits of f are set.
func (q QualityFlag) Has(f QualityFlag) bool { return q&f == f }

func (q QualityFlag) String() string {
	if q == 0 {
		return ""
	}
	parts := make([]string, 0, 2)
	for _, fn := range flagNames {
		if q.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// SeriesQuality is the fixed-schema quality summary of one cleaned series.
type SeriesQuality struct {
	Initial         int `json:"initial"`
	Usable          int `json:"usable"`
	Missing         int `json:"missing"`
	Imputed         int `json:"imputed"`
	OutOfRange      int `json:"out_of_range"`
	Outliers        int `json:"outliers"`
	OutliersDropped int `json:"outliers_dropped"`
	Duplicates      int `json:"duplicates"`
	InvalidDates    int `json:"invalid_dates"`
}

// Score is the usable share of the initial rows as a percentage with two decimals.
func (q SeriesQuality) Score() float64 {
	if q.Initial <= 0 {
		return 0
	}
	return roundTo(float64(q.Usable)/float64(q.Initial)*100, 2)
}

// CleanedSeries is a series after numeric validation, outlier handling and imputation.
// Flags is parallel to Points.
type CleanedSeries struct {
	Key     string
	Points  []Observation
	Flags   []QualityFlag
	Quality SeriesQuality
}

// Values returns the usable values in time order.
func (c *CleanedSeries) Values() []float64 {
	out := make([]float64, 0, len(c.Points))
	for _, p := range c.Points {
		if p.Present {
			out = append(out, p.Value)
		}
	}
	return out
}

// Times returns the timestamps of usable values in time order.
func (c *CleanedSeries) Times() []time.Time {
	out := make([]time.Time, 0, len(c.Points))
	for _, p := range c.Points {
		if p.Present {
			out = append(out, p.Time)
		}
	}
	return out
}
