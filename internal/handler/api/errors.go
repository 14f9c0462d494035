package api

import (
	"errors"
	"net/http"

	"EduPulse/internal/services/analytics"
	xhttp "EduPulse/pkg/http"
)

// toAppError maps pipeline errors onto HTTP errors. Details travel in Params.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var ae *analytics.Error
	if !errors.As(err, &ae) {
		return xhttp.InternalError("analysis failed").WithError(err)
	}

	var out *xhttp.AppError
	switch {
	case errors.Is(err, analytics.ErrUnsupportedFormat):
		out = xhttp.NewAppError("ERR_UNSUPPORTED_FORMAT", "file", ae.Error(), http.StatusBadRequest)
	case errors.Is(err, analytics.ErrMalformedInput):
		out = xhttp.NewAppError("ERR_MALFORMED_INPUT", "file", ae.Error(), http.StatusBadRequest)
	case errors.Is(err, analytics.ErrEmptySeries):
		out = xhttp.NewAppError("ERR_EMPTY_SERIES", "file", ae.Error(), http.StatusBadRequest)
	case errors.Is(err, analytics.ErrPayloadTooLarge):
		out = xhttp.PayloadTooLargeError(ae.Error())
		out.Field = "file"
	case errors.Is(err, analytics.ErrProcessingTimeout):
		out = xhttp.RequestTimeoutError(ae.Error())
	case errors.Is(err, analytics.ErrSeriesNotFound):
		out = xhttp.NewAppError("ERR_SERIES_NOT_FOUND", "category", ae.Error(), http.StatusNotFound)
	default:
		return xhttp.InternalError("analysis failed").WithError(err)
	}
	for k, v := range ae.Details {
		out.WithParam(k, v)
	}
	return out.WithError(err)
}
