package analytics

import (
	"strconv"

	"EduPulse/internal/domain/models"

	"github.com/tidwall/gjson"
)

// parseJSON accepts three shapes:
//
//	{"<key>": [{"date": ..., "value": ...}, ...], ...}
//	{"series": {"<key>": [...] | {"data": [...]}}}
//	[{"date": ..., "category"|"series": ..., "value": ...}, ...] or {"data": [...]}
func parseJSON(raw []byte) (*models.Dataset, error) {
	if !gjson.ValidBytes(raw) {
		return nil, newError(ErrUnsupportedFormat, "cannot parse json")
	}
	root := gjson.ParseBytes(raw)
	b := newDatasetBuilder()

	switch {
	case root.IsArray():
		if err := addLongRecords(b, root); err != nil {
			return nil, err
		}
		return b.build(models.FormatJSON, map[string]string{"shape": "records"})

	case root.IsObject():
		if data := root.Get("data"); data.IsArray() && looksLikeRecords(data) {
			if err := addLongRecords(b, data); err != nil {
				return nil, err
			}
			return b.build(models.FormatJSON, map[string]string{"shape": "records"})
		}
		container := root
		shape := "series_map"
		if s := root.Get("series"); s.IsObject() {
			container = s
			shape = "series_wrapper"
		}
		var perr error
		container.ForEach(func(k, v gjson.Result) bool {
			records := v
			if v.IsObject() {
				records = v.Get("data")
			}
			if !records.IsArray() {
				return true
			}
			perr = addSeriesRecords(b.get(k.String()), k.String(), records)
			return perr == nil
		})
		if perr != nil {
			return nil, perr
		}
		return b.build(models.FormatJSON, map[string]string{"shape": shape})

	default:
		return nil, newError(ErrMalformedInput, "json root must be an object or an array")
	}
}

// looksLikeRecords reports whether the first element is a record object.
func looksLikeRecords(arr gjson.Result) bool {
	first := arr.Get("0")
	return !first.Exists() || first.IsObject()
}

func addSeriesRecords(sb *seriesBuilder, key string, records gjson.Result) error {
	var err error
	idx := 0
	records.ForEach(func(_, rec gjson.Result) bool {
		date, value, ok := recordFields(rec)
		if !ok {
			err = missingField(key, idx, rec)
			return false
		}
		sb.add(date.String(), jsonValue(value), true)
		idx++
		return true
	})
	return err
}

func addLongRecords(b *datasetBuilder, records gjson.Result) error {
	var err error
	idx := 0
	records.ForEach(func(_, rec gjson.Result) bool {
		date, value, ok := recordFields(rec)
		if !ok {
			err = missingField("", idx, rec)
			return false
		}
		key := columnValue
		if s := rec.Get(columnSeries); s.Exists() && s.String() != "" {
			key = s.String()
		} else if c := rec.Get(columnCategory); c.Exists() && c.String() != "" {
			key = categoryPrefix + c.String()
		}
		b.get(key).add(date.String(), jsonValue(value), true)
		idx++
		return true
	})
	return err
}

func recordFields(rec gjson.Result) (date, value gjson.Result, ok bool) {
	if !rec.IsObject() {
		return date, value, false
	}
	for _, name := range dateColumnNames {
		if d := rec.Get(name); d.Exists() {
			date = d
			break
		}
	}
	value = rec.Get(columnValue)
	return date, value, date.Exists() && value.Exists()
}

func jsonValue(v gjson.Result) string {
	switch v.Type {
	case gjson.Number:
		return v.Raw
	case gjson.String:
		return v.Str
	default:
		return ""
	}
}

func missingField(key string, idx int, rec gjson.Result) *Error {
	e := newError(ErrMalformedInput, "record %d needs %q and %q fields", idx, "date", columnValue).
		WithDetail("record", strconv.Itoa(idx))
	if key != "" {
		e.WithDetail("series", key)
	}
	if !rec.IsObject() {
		e.WithDetail("reason", "record is not an object")
	}
	return e
}
