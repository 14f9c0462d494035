package analytics

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"EduPulse/internal/domain/models"
	"EduPulse/pkg/util"
)

// Long-layout CSV columns.
const (
	columnSeries   = "series"
	columnCategory = "category"
	columnValue    = "value"

	categoryPrefix = "category_"
)

func parseCSV(raw []byte) (*models.Dataset, error) {
	delim := sniffDelimiter(raw)
	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.ReuseRecord = false

	records, err := r.ReadAll()
	if err != nil {
		return nil, newError(ErrUnsupportedFormat, "cannot parse csv: %v", err)
	}
	if len(records) == 0 {
		return nil, newError(ErrMalformedInput, "csv has no header")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = util.NormalizeHeader(h)
	}
	if len(header) < 2 {
		return nil, newError(ErrMalformedInput, "csv needs a date column and at least one value column").
			WithDetail("columns", strconv.Itoa(len(header)))
	}

	dateIdx := findColumn(header, dateColumnNames...)
	if dateIdx < 0 {
		dateIdx = 0
	}
	details := map[string]string{
		"delimiter":   string(delim),
		"date_column": strings.TrimSpace(records[0][dateIdx]),
		"rows":        strconv.Itoa(len(records) - 1),
	}

	b := newDatasetBuilder()
	keyIdx := findColumn(header, columnSeries, columnCategory)
	if keyIdx >= 0 && keyIdx != dateIdx {
		valueIdx := findColumn(header, columnValue)
		if valueIdx < 0 {
			return nil, newError(ErrMalformedInput, "csv with a %q column needs a %q column", header[keyIdx], columnValue).
				WithDetail("missing_column", columnValue)
		}
		details["layout"] = "long"
		prefix := ""
		if header[keyIdx] == columnCategory {
			prefix = categoryPrefix
		}
		skipped := 0
		for _, row := range records[1:] {
			if blankRow(row) {
				continue
			}
			name := strings.TrimSpace(cell(row, keyIdx))
			if name == "" {
				skipped++
				continue
			}
			b.get(prefix+name).add(cell(row, dateIdx), cell(row, valueIdx), valueIdx < len(row))
		}
		if skipped > 0 {
			details["skipped_rows"] = strconv.Itoa(skipped)
		}
		return b.build(models.FormatCSV, details)
	}

	details["layout"] = "wide"
	keys := wideKeys(records[0], dateIdx)
	for _, row := range records[1:] {
		if blankRow(row) {
			continue
		}
		for col, key := range keys {
			b.get(key).add(cell(row, dateIdx), cell(row, col), col < len(row))
		}
	}
	return b.build(models.FormatCSV, details)
}

// wideKeys maps each non-date column index to a unique series key.
func wideKeys(header []string, dateIdx int) map[int]string {
	keys := make(map[int]string, len(header)-1)
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if i == dateIdx {
			continue
		}
		key := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if key == "" {
			key = fmt.Sprintf("column_%d", i+1)
		}
		if seen[key] {
			key = fmt.Sprintf("%s_%d", key, i+1)
		}
		seen[key] = true
		keys[i] = key
	}
	return keys
}

func sniffDelimiter(raw []byte) rune {
	line := raw
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		line = raw[:idx]
	}
	best, count := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > count {
			best, count = d, n
		}
	}
	return best
}

func findColumn(header []string, names ...string) int {
	for _, name := range names {
		for i, h := range header {
			if h == name {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
