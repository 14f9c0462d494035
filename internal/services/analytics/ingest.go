package analytics

import (
	"bytes"
	"errors"
	"mime"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"EduPulse/internal/domain/models"
	"EduPulse/internal/domain/service"
	"EduPulse/pkg/util"
)

// DefaultMaxUploadBytes bounds the size of one upload.
const DefaultMaxUploadBytes int64 = 5 << 20

var dateColumnNames = []string{"date", "timestamp", "time", "datetime", "period", "year", "index"}

// Ingestor detects the format of an upload and parses it into a Dataset.
type Ingestor struct {
	maxBytes int64
}

// NewIngestor creates an Ingestor. A non-positive limit uses DefaultMaxUploadBytes.
func NewIngestor(maxBytes int64) *Ingestor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Ingestor{maxBytes: maxBytes}
}

// MaxBytes returns the configured upload limit.
func (i *Ingestor) MaxBytes() int64 { return i.maxBytes }

// CheckSize fails with ErrPayloadTooLarge when size exceeds the limit.
func (i *Ingestor) CheckSize(size int64) error {
	if size > i.maxBytes {
		return newError(ErrPayloadTooLarge, "payload of %d bytes exceeds limit of %d bytes", size, i.maxBytes).
			WithDetail("limit_bytes", strconv.FormatInt(i.maxBytes, 10)).
			WithDetail("size_bytes", strconv.FormatInt(size, 10))
	}
	return nil
}

// Ingest parses raw bytes into a Dataset.
func (i *Ingestor) Ingest(raw []byte, hint models.FormatHint) (*models.Dataset, error) {
	if err := i.CheckSize(int64(len(raw))); err != nil {
		return nil, err
	}
	format, err := DetectFormat(raw, hint)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, newError(ErrMalformedInput, "empty %s payload", format)
	}

	switch format {
	case models.FormatCSV:
		return parseCSV(raw)
	case models.FormatJSON:
		return parseJSON(raw)
	default:
		return nil, newError(ErrUnsupportedFormat, "format %q", format)
	}
}

// DetectFormat picks the format from the declared format, the filename extension,
// the content type, and finally the content itself.
func DetectFormat(raw []byte, hint models.FormatHint) (models.Format, error) {
	if hint.Declared != models.FormatUnknown {
		return hint.Declared, nil
	}

	ext := strings.ToLower(filepath.Ext(hint.Filename))
	switch ext {
	case ".csv", ".tsv":
		return models.FormatCSV, nil
	case ".json":
		return models.FormatJSON, nil
	case "", ".txt":
	default:
		return models.FormatUnknown, newError(ErrUnsupportedFormat, "file extension %q is not supported, use CSV or JSON", ext).
			WithDetail("extension", ext)
	}

	if hint.ContentType != "" {
		if mt, _, err := mime.ParseMediaType(hint.ContentType); err == nil {
			switch mt {
			case "text/csv", "application/csv", "text/tab-separated-values":
				return models.FormatCSV, nil
			case "application/json", "text/json":
				return models.FormatJSON, nil
			}
		}
	}

	return sniffFormat(raw)
}

func sniffFormat(raw []byte) (models.Format, error) {
	body := bytes.TrimLeft(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(body) == 0 {
		return models.FormatUnknown, newError(ErrUnsupportedFormat, "cannot detect format of empty payload")
	}
	if body[0] == '{' || body[0] == '[' {
		return models.FormatJSON, nil
	}
	line := body
	if idx := bytes.IndexByte(body, '\n'); idx >= 0 {
		line = body[:idx]
	}
	if utf8.Valid(line) && bytes.IndexByte(line, 0) < 0 && bytes.ContainsAny(line, ",;\t") {
		return models.FormatCSV, nil
	}
	return models.FormatUnknown, newError(ErrUnsupportedFormat, "content is neither CSV nor JSON")
}

// parseValue converts a cell to a float. Overflowing numbers are kept as ±Inf so the
// cleaner can flag them; anything else non-numeric is absent.
func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
	switch strings.ToLower(s) {
	case "", "null", "none", "na", "n/a", "-":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return v, true
		}
		return 0, false
	}
	return v, true
}

// seriesBuilder accumulates rows of one series with last-write-wins on timestamps.
type seriesBuilder struct {
	key   string
	rows  map[int64]models.Observation
	stats models.IngestStats
}

func newSeriesBuilder(key string) *seriesBuilder {
	return &seriesBuilder{key: key, rows: make(map[int64]models.Observation)}
}

func (b *seriesBuilder) add(rawDate, rawValue string, hasValue bool) {
	b.stats.Rows++
	t, ok := parseDate(rawDate)
	if !ok {
		b.stats.InvalidDates++
		return
	}
	obs := models.Observation{Time: t}
	if hasValue {
		obs.Value, obs.Present = parseValue(rawValue)
	}
	if hasValue && !obs.Present && strings.TrimSpace(rawValue) != "" {
		b.stats.InvalidValues++
	}
	k := t.UnixNano()
	if _, dup := b.rows[k]; dup {
		b.stats.Duplicates++
	}
	b.rows[k] = obs
}

func (b *seriesBuilder) build() *models.Series {
	points := make([]models.Observation, 0, len(b.rows))
	for _, o := range b.rows {
		points = append(points, o)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return &models.Series{Key: b.key, Points: points, Ingest: b.stats}
}

// datasetBuilder keeps builders per series key.
type datasetBuilder struct {
	series map[string]*seriesBuilder
}

func newDatasetBuilder() *datasetBuilder {
	return &datasetBuilder{series: make(map[string]*seriesBuilder)}
}

func (d *datasetBuilder) get(key string) *seriesBuilder {
	b, ok := d.series[key]
	if !ok {
		b = newSeriesBuilder(key)
		d.series[key] = b
	}
	return b
}

func (d *datasetBuilder) build(format models.Format, details map[string]string) (*models.Dataset, error) {
	if len(d.series) == 0 {
		return nil, newError(ErrMalformedInput, "no series found in %s payload", format)
	}
	ds := &models.Dataset{
		Format:  format,
		Series:  make(map[string]*models.Series, len(d.series)),
		Details: details,
	}
	for key, b := range d.series {
		ds.Series[key] = b.build()
	}
	return ds, nil
}

func parseDate(s string) (time.Time, bool) {
	return util.ParseTime(s)
}

var _ service.Ingestor = (*Ingestor)(nil)
