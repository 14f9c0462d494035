package util

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order after RFC3339.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"2006-01",
	"2006.01.02",
	"20060102",
	"2006",
}

// minEpochSeconds rejects small integers as unix times; 1e8 is 1973-03-03.
const minEpochSeconds = 1e8

// ParseTime tries RFC3339, the common date layouts (a bare year included) and unix seconds or
// milliseconds. Returns (t, true) if any worked. Layouts without a zone are interpreted as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts >= minEpochSeconds {
		if ts > 1e11 { // ms
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// FormatDate renders midnight-aligned UTC times as dates and everything else as RFC3339
// with as much sub-second precision as the time carries.
func FormatDate(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339Nano)
}

// ExportStamp formats t for export file names.
func ExportStamp(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}
