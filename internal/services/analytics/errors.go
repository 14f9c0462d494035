package analytics

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrMalformedInput    = errors.New("malformed input")
	ErrEmptySeries       = errors.New("empty series")
	ErrProcessingTimeout = errors.New("processing timeout")
	ErrSeriesNotFound    = errors.New("series not found")
)

// Error is a pipeline failure with structured details for the caller.
type Error struct {
	Kind    error
	Message string
	Details map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

// WithDetail adds a key/value to the error details.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func newError(kind error, format string, a ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

// EmptySeriesError reports a series with no usable points left after cleaning.
func EmptySeriesError(key string) *Error {
	return newError(ErrEmptySeries, "series %q has no usable values", key).WithDetail("series", key)
}

// TimeoutError reports a pipeline that did not finish within its deadline.
func TimeoutError(limit string) *Error {
	return newError(ErrProcessingTimeout, "analysis exceeded %s", limit).WithDetail("timeout", limit)
}

// SeriesNotFoundError reports a requested series key absent from the dataset.
func SeriesNotFoundError(key string) *Error {
	return newError(ErrSeriesNotFound, "category %q not found", key).WithDetail("category", key)
}

// Kind returns a stable label for err, suitable for metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, ErrEmptySeries):
		return "empty_series"
	case errors.Is(err, ErrProcessingTimeout):
		return "processing_timeout"
	case errors.Is(err, ErrSeriesNotFound):
		return "series_not_found"
	default:
		return "internal"
	}
}
