package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"EduPulse/internal/domain/models"
	appmw "EduPulse/internal/middleware"
	"EduPulse/internal/service/metrics"
	"EduPulse/internal/services/analytics"
	"EduPulse/internal/usecase"
	xhttp "EduPulse/pkg/http"
	"EduPulse/pkg/http/middleware"
	xlogger "EduPulse/pkg/logger"
	"EduPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// multipartOverhead leaves room for boundaries and part headers around the file.
const multipartOverhead = 64 << 10

// Analyzer is the analytics use case seen by the handler.
type Analyzer interface {
	Analyze(ctx context.Context, in usecase.Upload, req models.AnalyzeRequest) (*usecase.AnalyzeResult, error)
	QuickAnalyze(ctx context.Context, in usecase.Upload, req models.QuickAnalysisRequest) (*models.QuickReport, error)
}

// AnalyticsHandlerOption configures AnalyticsEchoHandler.
type AnalyticsHandlerOption func(*AnalyticsEchoHandler)

// WithAuth protects every analytics route with mw.
func WithAuth(mw echo.MiddlewareFunc) AnalyticsHandlerOption {
	return func(h *AnalyticsEchoHandler) { h.auth = mw }
}

// WithRateLimit limits the analysis routes with mw. It runs after auth so it can key by user.
func WithRateLimit(mw echo.MiddlewareFunc) AnalyticsHandlerOption {
	return func(h *AnalyticsEchoHandler) { h.limit = mw }
}

// WithEndpointMetrics records latency and errors per endpoint.
func WithEndpointMetrics(m *metrics.Endpoint) AnalyticsHandlerOption {
	return func(h *AnalyticsEchoHandler) { h.metrics = m }
}

// WithLimits sets the upload size limit and the numeric limit shown in the documentation.
func WithLimits(maxUploadBytes int64, maxAbsValue float64) AnalyticsHandlerOption {
	return func(h *AnalyticsEchoHandler) {
		h.maxBytes = maxUploadBytes
		h.maxAbs = maxAbsValue
	}
}

// AnalyticsEchoHandler serves the analytics endpoints under /api/v1/analytics.
type AnalyticsEchoHandler struct {
	logger   *xlogger.Logger
	svc      Analyzer
	metrics  *metrics.Endpoint
	auth     echo.MiddlewareFunc
	limit    echo.MiddlewareFunc
	maxBytes int64
	maxAbs   float64
	docs     Documentation
}

func NewAnalyticsEchoHandler(logger *xlogger.Logger, svc Analyzer, opts ...AnalyticsHandlerOption) *AnalyticsEchoHandler {
	h := &AnalyticsEchoHandler{logger: logger, svc: svc, maxAbs: 1e308}
	for _, opt := range opts {
		opt(h)
	}
	h.docs = newDocumentation(h.maxAbs, h.maxBytes)
	return h
}

func (h *AnalyticsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/analytics")
	if h.auth != nil {
		g.Use(h.auth)
	}
	var limited []echo.MiddlewareFunc
	if h.limit != nil {
		limited = append(limited, h.limit)
	}
	g.POST("/analyze", h.Analyze, limited...)
	g.POST("/quick-analysis", h.QuickAnalyze, limited...)
	g.GET("/documentation", h.Documentation)
}

// Analyze runs the full pipeline on the uploaded file.
func (h *AnalyticsEchoHandler) Analyze(c echo.Context) error {
	start := time.Now()
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateQuery(c, req); verr != nil {
		h.metrics.Observe("analyze", start, "validation")
		return xhttp.AppErrorResponse(c, xhttp.ValidationAppError(verr))
	}

	in, err := h.readUpload(c)
	if err != nil {
		return h.fail(c, "analyze", start, err)
	}
	// flags may also arrive as multipart form fields; the query string wins
	if c.QueryParam("include_forecast") == "" {
		req.IncludeForecast = util.ParseBoolDefault(c.FormValue("include_forecast"), req.IncludeForecast)
	}
	if c.QueryParam("include_visualizations") == "" {
		req.IncludeVisualizations = util.ParseBoolDefault(c.FormValue("include_visualizations"), req.IncludeVisualizations)
	}

	out, err := h.svc.Analyze(c.Request().Context(), in, *req)
	if err != nil {
		return h.fail(c, "analyze", start, err)
	}
	h.metrics.Observe("analyze", start, "")

	if out.Export != nil {
		return xhttp.AttachmentResponse(c, out.Export.Filename, out.Export.ContentType, out.Export.Body)
	}
	return xhttp.SuccessResponse(c, out.Report)
}

// QuickAnalyze returns trend, growth and current value per series.
func (h *AnalyticsEchoHandler) QuickAnalyze(c echo.Context) error {
	start := time.Now()
	req := &models.QuickAnalysisRequest{}
	if verr := xhttp.ReadAndValidateQuery(c, req); verr != nil {
		h.metrics.Observe("quick_analysis", start, "validation")
		return xhttp.AppErrorResponse(c, xhttp.ValidationAppError(verr))
	}

	in, err := h.readUpload(c)
	if err != nil {
		return h.fail(c, "quick_analysis", start, err)
	}
	if req.Category == "" {
		// category may also arrive as a multipart form field
		req.Category = c.FormValue("category")
	}

	res, err := h.svc.QuickAnalyze(c.Request().Context(), in, *req)
	if err != nil {
		return h.fail(c, "quick_analysis", start, err)
	}
	h.metrics.Observe("quick_analysis", start, "")
	return xhttp.SuccessResponse(c, res)
}

// Documentation describes endpoints, accepted data formats and numeric limits.
func (h *AnalyticsEchoHandler) Documentation(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
	return xhttp.SuccessResponse(c, h.docs)
}

func (h *AnalyticsEchoHandler) readUpload(c echo.Context) (usecase.Upload, error) {
	req := c.Request()
	if h.maxBytes > 0 {
		req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxBytes+multipartOverhead)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return usecase.Upload{}, xhttp.PayloadTooLargeError(
				fmt.Sprintf("upload exceeds %d bytes", h.maxBytes)).WithParam("limit", h.maxBytes)
		case errors.Is(err, http.ErrMissingFile):
			e := xhttp.BadRequestError("file is required")
			e.Field = "file"
			return usecase.Upload{}, e
		default:
			return usecase.Upload{}, xhttp.BadRequestErrorf("invalid multipart upload: %v", err)
		}
	}
	f, err := fh.Open()
	if err != nil {
		return usecase.Upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if h.maxBytes > 0 {
		// one extra byte lets the pipeline see the file is over the limit
		r = io.LimitReader(f, h.maxBytes+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return usecase.Upload{}, fmt.Errorf("read upload: %w", err)
	}

	ctx := req.Context()
	who, ok := appmw.IdentityFromContext(ctx)
	if !ok {
		who = models.Identity{UserID: "anonymous"}
	}
	return usecase.Upload{
		Raw: raw,
		Hint: models.FormatHint{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
		},
		Identity:  who,
		RequestID: middleware.RequestIDFromContext(ctx),
		IPAddress: c.RealIP(),
	}, nil
}

func (h *AnalyticsEchoHandler) fail(c echo.Context, endpoint string, start time.Time, err error) error {
	appErr := toAppError(err)
	kind := analytics.Kind(err)
	if appErr.Status < http.StatusInternalServerError && kind == "internal" {
		kind = strings.ToLower(strings.TrimPrefix(appErr.Code, "ERR_"))
	}
	h.metrics.Observe(endpoint, start, kind)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" failed",
			xlogger.String("request_id", middleware.RequestIDFromContext(c.Request().Context())),
			xlogger.Error(err),
		)
	}
	return xhttp.AppErrorResponse(c, appErr)
}
